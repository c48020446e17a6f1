package poolkeeper

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultAddMemberRetry is the default growth-attempt count when a
// PoolConfig omits AddMemberRetry: one retry. CullInterval and MaxAge
// both default to their zero value (disabled / immediately cullable
// once free) when omitted.
const defaultAddMemberRetry = 1

// TimeSpec is the {n, unit} duration encoding used for cull_interval and
// max_age: a count plus one of the four recognized units. It unmarshals
// from YAML and JSON the same way configurationtypes.Duration does in
// the pack this module was grounded on, but keeps the explicit unit
// instead of relying on Go's own "300ms"-style duration grammar.
type TimeSpec struct {
	N    int64
	Unit TimeUnit
}

// TimeUnit enumerates the recognized duration units.
type TimeUnit string

const (
	UnitMinute      TimeUnit = "min"
	UnitSecond      TimeUnit = "sec"
	UnitMillisecond TimeUnit = "ms"
	UnitMicrosecond TimeUnit = "mu"
)

// Duration converts a TimeSpec to a time.Duration, using multipliers of
// 60e6, 1e6, 1e3 and 1 microseconds respectively.
func (t TimeSpec) Duration() (time.Duration, error) {
	if t.N == 0 {
		return 0, nil
	}
	var micros int64
	switch t.Unit {
	case UnitMinute:
		micros = t.N * 60 * 1_000_000
	case UnitSecond:
		micros = t.N * 1_000_000
	case UnitMillisecond:
		micros = t.N * 1_000
	case UnitMicrosecond:
		micros = t.N
	case "":
		micros = t.N * 60 * 1_000_000 // default unit is minute
	default:
		return 0, fmt.Errorf("poolkeeper: unrecognized time unit %q", t.Unit)
	}
	return time.Duration(micros) * time.Microsecond, nil
}

// UnmarshalYAML parses a {n, unit} mapping into a TimeSpec, following
// yaml.v3's node-based Unmarshaler interface (the same shape
// configurationtypes.Duration uses for its own custom duration decoding).
func (t *TimeSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		N    int64    `yaml:"n"`
		Unit TimeUnit `yaml:"unit"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.N = raw.N
	t.Unit = raw.Unit
	if t.Unit == "" {
		t.Unit = UnitMinute
	}
	return nil
}

// PoolConfig describes one pool to be registered with the Coordinator
// via AddPool or AddPools. The config package's YAML loader produces a
// slice of these.
type PoolConfig struct {
	// Name is the pool's unique identifier. Required.
	Name string

	// MaxCount is the absolute ceiling on total workers (free + in-use).
	MaxCount int

	// InitCount is the target population floor maintained after
	// culling, and the number of workers spawned on AddPool.
	InitCount int

	// Descriptor is the opaque factory descriptor passed to the
	// WorkerFactory when spawning a worker for this pool. Required.
	Descriptor interface{}

	// AddMemberRetry is the number of growth attempts during a single
	// take when the pool is empty but below MaxCount. Zero means "use
	// the default of 1"; pass a pointer-free explicit 0 is not
	// representable, so PoolConfig callers who want retries disabled
	// entirely should use NoRetry.
	AddMemberRetry int

	// NoRetry disables on-demand growth during take entirely,
	// overriding AddMemberRetry. This exists because the zero value of
	// AddMemberRetry is indistinguishable from "not set" (which
	// defaults to 1), and a take with zero retries left must never grow
	// the pool, so this flag makes that case explicit.
	NoRetry bool

	// CullInterval, when non-zero, enables periodic culling of idle
	// free workers for this pool.
	CullInterval TimeSpec

	// MaxAge is how long a free worker may sit idle before it becomes
	// eligible for culling.
	MaxAge TimeSpec
}

// withDefaults returns a copy of c with its defaults applied.
func (c PoolConfig) withDefaults() PoolConfig {
	if c.AddMemberRetry == 0 && !c.NoRetry {
		c.AddMemberRetry = defaultAddMemberRetry
	}
	if c.NoRetry {
		c.AddMemberRetry = 0
	}
	return c
}

// Status is the disposition a consumer reports when returning a worker.
type Status int

const (
	// StatusOK means the worker is healthy and should be recycled as
	// free.
	StatusOK Status = iota
	// StatusFail means the worker should be destroyed and replaced.
	StatusFail
)

// WorkerHandle is the opaque identity of a live worker, as produced by a
// WorkerFactory's Spawn call.
type WorkerHandle interface{}

// ConsumerID is the opaque identity of a borrowing consumer, supplied by
// the caller on every Take/Return.
type ConsumerID interface{}

// ExitReason classifies why a worker or consumer terminated. Only
// "normal" maps to a StatusOK-equivalent return; anything else is
// treated as a failure.
type ExitReason string

// Normal is the exit reason that yields StatusOK semantics for a
// terminated consumer's held workers.
const Normal ExitReason = "normal"
