// Package config loads pool definitions from a YAML document into a list
// of poolkeeper.PoolConfig values, the way an operator would hand a set
// of pool descriptions to a Coordinator at startup. Duration parsing
// follows the {n, unit}-shaped convention used elsewhere in this stack.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arvil-systems/poolkeeper/pkg/poolkeeper"
)

// poolDoc is the on-disk shape of one pool entry.
type poolDoc struct {
	Name     string      `yaml:"name"`
	MaxCount int         `yaml:"max_count"`
	InitCount int        `yaml:"init_count"`
	StartMFA interface{} `yaml:"start_mfa"`

	// AddMemberRetry is a pointer so an explicit "add_member_retry: 0"
	// in the document (disable growth) can be told apart from the key
	// being omitted entirely (use the spec default of 1).
	AddMemberRetry *int                `yaml:"add_member_retry"`
	CullInterval   poolkeeper.TimeSpec `yaml:"cull_interval"`
	MaxAge         poolkeeper.TimeSpec `yaml:"max_age"`
}

// document is the top-level YAML shape: a "pools" list.
type document struct {
	Pools []poolDoc `yaml:"pools"`
}

// Load reads a YAML pool-config document from path and returns the
// decoded PoolConfig list.
func Load(path string) ([]poolkeeper.PoolConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a YAML pool-config document from r and returns the
// decoded PoolConfig list. It is split out from Load so callers that
// already have the document in memory (tests, embedded config) don't
// need a real file.
func Decode(r io.Reader) ([]poolkeeper.PoolConfig, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	out := make([]poolkeeper.PoolConfig, 0, len(doc.Pools))
	for _, p := range doc.Pools {
		if p.Name == "" {
			return nil, fmt.Errorf("config: pool entry missing required field %q", "name")
		}
		if p.StartMFA == nil {
			return nil, fmt.Errorf("config: pool %q missing required field %q", p.Name, "start_mfa")
		}
		cfg := poolkeeper.PoolConfig{
			Name:         p.Name,
			MaxCount:     p.MaxCount,
			InitCount:    p.InitCount,
			Descriptor:   p.StartMFA,
			CullInterval: p.CullInterval,
			MaxAge:       p.MaxAge,
		}
		switch {
		case p.AddMemberRetry == nil:
			// leave zero; PoolConfig.withDefaults fills in 1
		case *p.AddMemberRetry == 0:
			cfg.NoRetry = true
		default:
			cfg.AddMemberRetry = *p.AddMemberRetry
		}
		out = append(out, cfg)
	}
	return out, nil
}
