package sim

import "time"

// Replayer walks recorded samples against wall time.
type Replayer struct {
	samples []Sample
	speedup float64
	start   time.Time
	next    int
	now     func() time.Time
}

// Replay plays the recorded steps back, speedup times faster than they
// were simulated.
func (s *Simulator) Replay(speedup float64) *Replayer {
	if speedup <= 0 {
		speedup = 1
	}
	return &Replayer{samples: s.samples, speedup: speedup, now: time.Now}
}

// Next returns the newest sample whose time has come, and false once the
// trace is exhausted. Before the first sample is due it returns the zero
// Sample.
func (r *Replayer) Next() (Sample, bool) {
	if r.next >= len(r.samples) {
		if len(r.samples) == 0 {
			return Sample{}, false
		}
		return r.samples[len(r.samples)-1], false
	}
	if r.start.IsZero() {
		r.start = r.now()
	}
	elapsed := uint64(float64(r.now().Sub(r.start)/time.Microsecond) * r.speedup)
	for r.next < len(r.samples) && r.samples[r.next].Time <= elapsed {
		r.next++
	}
	if r.next == 0 {
		return Sample{}, true
	}
	return r.samples[r.next-1], true
}
