package config

import (
	"strings"
	"testing"

	"github.com/arvil-systems/poolkeeper/pkg/poolkeeper"
)

func TestDecode(t *testing.T) {
	doc := `
pools:
  - name: db
    max_count: 10
    init_count: 2
    start_mfa: "postgres://localhost/app"
    cull_interval:
      n: 5
      unit: min
    max_age:
      n: 30
      unit: sec
  - name: workers
    max_count: 4
    init_count: 4
    start_mfa: "spawn_worker"
    add_member_retry: 0
`
	cfgs, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cfgs) != 2 {
		t.Fatalf("got %d pools, want 2", len(cfgs))
	}

	db := cfgs[0]
	if db.Name != "db" || db.MaxCount != 10 || db.InitCount != 2 {
		t.Fatalf("db pool decoded wrong: %+v", db)
	}
	if db.CullInterval.N != 5 || db.CullInterval.Unit != poolkeeper.UnitMinute {
		t.Fatalf("db cull_interval decoded wrong: %+v", db.CullInterval)
	}

	workers := cfgs[1]
	if !workers.NoRetry {
		t.Fatalf("workers pool: explicit add_member_retry: 0 should set NoRetry")
	}
}

func TestDecodeMissingRequiredFields(t *testing.T) {
	if _, err := Decode(strings.NewReader("pools:\n  - max_count: 1\n")); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := Decode(strings.NewReader("pools:\n  - name: p\n")); err == nil {
		t.Fatal("expected error for missing start_mfa")
	}
}

func TestDecodeOmittedAddMemberRetryDefersToDefault(t *testing.T) {
	cfgs, err := Decode(strings.NewReader("pools:\n  - name: p\n    start_mfa: x\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfgs[0].AddMemberRetry != 0 || cfgs[0].NoRetry {
		t.Fatalf("got %+v, want zero AddMemberRetry and NoRetry=false (withDefaults fills in 1 later)", cfgs[0])
	}
}
