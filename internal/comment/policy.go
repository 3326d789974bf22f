package comment

import "math/rand"

// PersistMode selects how persist-eligibility is decided per record.
type PersistMode string

const (
	PersistNone   PersistMode = "none"
	PersistAll    PersistMode = "all"
	PersistSample PersistMode = "sample"
)

// Policy decides once per record, before enqueue, whether it is
// persist-eligible. The decision is never revisited.
type Policy struct {
	Mode       PersistMode
	SampleRate float64

	// Rand overrides the sampling source; tests inject a deterministic one.
	Rand func() float64
}

// ShouldPersist reports whether a record should be enqueued for durable
// persistence. A caller-forced record is always eligible regardless of mode.
// Sample rates outside [0,1] are clamped.
func (p Policy) ShouldPersist(force bool) bool {
	if force {
		return true
	}
	switch p.Mode {
	case PersistAll:
		return true
	case PersistSample:
		rate := p.SampleRate
		if rate <= 0 {
			return false
		}
		if rate >= 1 {
			return true
		}
		random := p.Rand
		if random == nil {
			random = rand.Float64
		}
		return random() < rate
	default:
		return false
	}
}
