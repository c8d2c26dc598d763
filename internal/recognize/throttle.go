package recognize

// Throttler enforces a global frame cooldown between unknown-face snapshot
// captures. It only decides; the caller performs the actual crop and write.
type Throttler struct {
	cooldown int
	lastFire int
}

// NewThrottler builds a throttler whose first request always fires.
func NewThrottler(cooldown int) *Throttler {
	return &Throttler{cooldown: cooldown, lastFire: -cooldown}
}

// Allow reports whether a capture may fire at frame, and records it when it
// does. With a global cooldown, a second unknown in the same frame is
// always denied.
func (t *Throttler) Allow(frame int) bool {
	if frame-t.lastFire < t.cooldown {
		return false
	}
	t.lastFire = frame
	return true
}
