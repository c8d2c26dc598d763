package recognize

import "time"

// UnknownKey is the aggregate tracking key for detections that match no
// enrolled identity. Unknowns are tracked as a single presence; nothing
// links individual unknown faces across frames.
const UnknownKey = "unknown"

// EventKind classifies a loggable presence event.
type EventKind string

const (
	EventArrival      EventKind = "arrival"
	EventContinuation EventKind = "continuation"
	EventDeparture    EventKind = "departure"
)

// Event is one immutable entry for the event log.
type Event struct {
	TS       time.Time
	Key      string
	Distance float64
	Frame    int
	Kind     EventKind
	// Dwell is last-seen minus session-start in frames, set on departures.
	Dwell int
}

// Sighting is one tracked key observed in the current frame.
type Sighting struct {
	Key      string
	Distance float64
}

// presence is the per-key state machine: ABSENT -> VISIBLE -> (grace
// countdown) -> ABSENT.
type presence struct {
	visible    bool
	missed     int // consecutive frames without a sighting
	startFrame int // first frame of the current visit
	lastSeen   int
	lastDist   float64
}

// Tracker turns raw per-frame sightings into arrival, continuation, and
// departure events, so a person standing in frame for 300 frames produces
// one arrival rather than 300 log rows. State is keyed by identity label
// plus UnknownKey. The grace period tolerates the detector missing a face
// for a few frames without fragmenting one visit into many events.
type Tracker struct {
	grace      int // consecutive missed frames before a departure
	reannounce int // presence frames between continuation events
	keys       map[string]*presence
	order      []string // key creation order, keeps event order deterministic
}

// NewTracker builds a tracker. grace and reannounce are frame counts and
// must be at least 1.
func NewTracker(grace, reannounce int) *Tracker {
	return &Tracker{
		grace:      grace,
		reannounce: reannounce,
		keys:       make(map[string]*presence),
	}
}

// Observe advances every tracked key by one frame and returns the events
// that became loggable. seen lists the keys sighted in this frame in
// detection order; duplicate keys fold to their best (smallest) distance.
// Frame indexes must be strictly increasing but may gap: a frame the
// encoder failed on never reaches the tracker, and neither grace nor
// reannounce counting advances for it.
func (t *Tracker) Observe(frame int, ts time.Time, seen []Sighting) []Event {
	best := make(map[string]float64, len(seen))
	var firstSeen []string
	for _, s := range seen {
		if d, ok := best[s.Key]; !ok {
			best[s.Key] = s.Distance
			firstSeen = append(firstSeen, s.Key)
		} else if s.Distance < d {
			best[s.Key] = s.Distance
		}
	}

	var events []Event
	for _, key := range firstSeen {
		d := best[key]
		p, ok := t.keys[key]
		if !ok {
			p = &presence{}
			t.keys[key] = p
			t.order = append(t.order, key)
		}
		if !p.visible {
			p.visible = true
			p.missed = 0
			p.startFrame = frame
			p.lastSeen = frame
			p.lastDist = d
			events = append(events, Event{TS: ts, Key: key, Distance: d, Frame: frame, Kind: EventArrival})
			continue
		}
		p.missed = 0
		p.lastSeen = frame
		p.lastDist = d
		// Re-announce long dwells so they still show up in the log:
		// every reannounce-th frame of presence, counted from the
		// session start. Frames missed inside the grace window can
		// swallow a multiple; the next one fires normally.
		if (frame-p.startFrame+1)%t.reannounce == 0 {
			events = append(events, Event{TS: ts, Key: key, Distance: d, Frame: frame, Kind: EventContinuation})
		}
	}

	// Grace countdown for every visible key not sighted this frame. The
	// departure is stamped with the last frame the key was actually seen,
	// so arrival->departure spans in the log equal real visible spans.
	for _, key := range t.order {
		p := t.keys[key]
		if !p.visible {
			continue
		}
		if _, ok := best[key]; ok {
			continue
		}
		p.missed++
		if p.missed >= t.grace {
			p.visible = false
			events = append(events, Event{
				TS:       ts,
				Key:      key,
				Distance: p.lastDist,
				Frame:    p.lastSeen,
				Kind:     EventDeparture,
				Dwell:    p.lastSeen - p.startFrame,
			})
		}
	}
	return events
}

// VisibleKeys lists the currently present keys (including those inside
// their grace window) in first-tracked order.
func (t *Tracker) VisibleKeys() []string {
	var keys []string
	for _, key := range t.order {
		if t.keys[key].visible {
			keys = append(keys, key)
		}
	}
	return keys
}

// Span is the inclusive frame span of key's current visit, zero when the
// key is absent.
func (t *Tracker) Span(key string) int {
	p, ok := t.keys[key]
	if !ok || !p.visible {
		return 0
	}
	return p.lastSeen - p.startFrame + 1
}
