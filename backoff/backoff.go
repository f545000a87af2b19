package backoff

import "time"

// Class buckets a failed fetch by how the next attempt should be paced.
type Class int

const (
	// ClassTransient covers timeouts, connection resets, proxy auth errors
	// and 5xx responses.
	ClassTransient Class = iota
	// ClassBlocked covers rate-limit and bot-detection responses. Hammering
	// the upstream again from the same apparent identity is what earns
	// longer blocks, so these get an elevated floor.
	ClassBlocked
	// ClassNotFound covers responses saying the resource no longer exists.
	ClassNotFound
)

// Policy maps (attempt index, failure class) to the delay before the next
// attempt. It is a pure function of its inputs; randomized pacing between
// unrelated items is the scheduler's concern, not the policy's.
type Policy struct {
	Base       time.Duration // delay before the first retry
	Cap        time.Duration // ceiling for the exponential growth
	BlockFloor time.Duration // minimum delay after a blocking response
}

func Default() Policy {
	return Policy{
		Base:       10 * time.Second,
		Cap:        2 * time.Minute,
		BlockFloor: 30 * time.Second,
	}
}

// Delay returns how long to wait before attempt number attempt+1, and whether
// retrying is worth it at all. ClassNotFound short-circuits to no retry.
func (p Policy) Delay(attempt int, class Class) (time.Duration, bool) {
	if class == ClassNotFound {
		return 0, false
	}

	d := p.Cap
	if attempt >= 0 && attempt < 20 {
		if v := p.Base << uint(attempt); v > 0 && v < p.Cap {
			d = v
		}
	}

	if class == ClassBlocked && d < p.BlockFloor {
		d = p.BlockFloor
	}
	return d, true
}
