package recognize

import (
	"testing"
	"time"
)

var trackerTS = time.Date(2025, 1, 14, 15, 30, 0, 0, time.UTC)

// feed runs the tracker over a presence mask: mask[i] true means the key is
// sighted in frame i+1. Returns all emitted events.
func feed(t *Tracker, key string, dist float64, mask []bool) []Event {
	var events []Event
	for i, present := range mask {
		var seen []Sighting
		if present {
			seen = []Sighting{{Key: key, Distance: dist}}
		}
		events = append(events, t.Observe(i+1, trackerTS, seen)...)
	}
	return events
}

func mask(spans ...int) []bool {
	// mask(10, 3, 5) = 10 present, 3 absent, 5 present, ...
	var m []bool
	present := true
	for _, n := range spans {
		for i := 0; i < n; i++ {
			m = append(m, present)
		}
		present = !present
	}
	return m
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestTrackerSingleArrival(t *testing.T) {
	// 30 consecutive sighted frames produce one arrival, not 30.
	tr := NewTracker(5, 1000)
	events := feed(tr, "Ronaldo", 0.3, mask(30))

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d: %+v", len(events), events)
	}
	if events[0].Kind != EventArrival || events[0].Frame != 1 || events[0].Key != "Ronaldo" {
		t.Errorf("unexpected arrival event: %+v", events[0])
	}
	if events[0].Distance != 0.3 {
		t.Errorf("arrival should carry the frame's distance, got %v", events[0].Distance)
	}
}

func TestTrackerContinuations(t *testing.T) {
	// Re-announce every 4 presence frames: 10 sighted frames give
	// floor(10/4) = 2 continuations, at frames 4 and 8.
	tr := NewTracker(3, 4)
	events := feed(tr, "Ronaldo", 0.3, mask(10))

	if got := countKind(events, EventArrival); got != 1 {
		t.Fatalf("expected 1 arrival, got %d", got)
	}
	var contFrames []int
	for _, ev := range events {
		if ev.Kind == EventContinuation {
			contFrames = append(contFrames, ev.Frame)
		}
	}
	if len(contFrames) != 2 || contFrames[0] != 4 || contFrames[1] != 8 {
		t.Errorf("expected continuations at frames [4 8], got %v", contFrames)
	}
}

func TestTrackerGraceHold(t *testing.T) {
	// Missing for grace-1 frames is treated as continuous presence:
	// no departure, no second arrival.
	tr := NewTracker(5, 1000)
	events := feed(tr, "Ronaldo", 0.3, mask(10, 4, 5))

	if got := countKind(events, EventArrival); got != 1 {
		t.Errorf("expected 1 arrival, got %d", got)
	}
	if got := countKind(events, EventDeparture); got != 0 {
		t.Errorf("expected 0 departures, got %d", got)
	}
	if span := tr.Span("Ronaldo"); span != 19 {
		t.Errorf("expected visit span 19, got %d", span)
	}
}

func TestTrackerDeparture(t *testing.T) {
	// Missing for the full grace period declares absence; the departure is
	// stamped with the last seen frame. A later sighting is a fresh arrival.
	tr := NewTracker(3, 1000)
	events := feed(tr, "Ronaldo", 0.3, mask(5, 3, 1))

	if got := countKind(events, EventArrival); got != 2 {
		t.Fatalf("expected 2 arrivals (one fresh after absence), got %d", got)
	}
	var dep *Event
	for i := range events {
		if events[i].Kind == EventDeparture {
			dep = &events[i]
		}
	}
	if dep == nil {
		t.Fatal("expected a departure event")
	}
	if dep.Frame != 5 {
		t.Errorf("departure should carry the last seen frame 5, got %d", dep.Frame)
	}
	if dep.Dwell != 4 {
		t.Errorf("expected dwell 4 (last seen 5 - start 1), got %d", dep.Dwell)
	}
	if dep.Distance != 0.3 {
		t.Errorf("departure should carry the last sighted distance, got %v", dep.Distance)
	}

	last := events[len(events)-1]
	if last.Kind != EventArrival || last.Frame != 9 {
		t.Errorf("expected fresh arrival at frame 9, got %+v", last)
	}
}

func TestTrackerContinuousPresenceScenario(t *testing.T) {
	// Ten sighted frames, three missed (grace 5), five sighted again:
	// one arrival, zero departures, an 18-frame visit.
	tr := NewTracker(5, 1000)
	events := feed(tr, "Ronaldo", 0.1, mask(10, 3, 5))

	if got := countKind(events, EventArrival); got != 1 {
		t.Errorf("expected 1 arrival, got %d", got)
	}
	if got := countKind(events, EventDeparture); got != 0 {
		t.Errorf("expected 0 departures, got %d", got)
	}
	if span := tr.Span("Ronaldo"); span != 18 {
		t.Errorf("expected presence span 18, got %d", span)
	}
	if keys := tr.VisibleKeys(); len(keys) != 1 || keys[0] != "Ronaldo" {
		t.Errorf("expected Ronaldo still visible, got %v", keys)
	}
}

func TestTrackerUnknownAggregate(t *testing.T) {
	// Several unknown detections in one frame fold into one tracked
	// presence with the best distance.
	tr := NewTracker(5, 1000)
	events := tr.Observe(1, trackerTS, []Sighting{
		{Key: UnknownKey, Distance: 0.9},
		{Key: UnknownKey, Distance: 0.7},
		{Key: UnknownKey, Distance: 0.8},
	})

	if len(events) != 1 {
		t.Fatalf("expected 1 aggregate arrival, got %d", len(events))
	}
	if events[0].Key != UnknownKey || events[0].Distance != 0.7 {
		t.Errorf("expected unknown arrival with best distance 0.7, got %+v", events[0])
	}
}

func TestTrackerIndependentKeys(t *testing.T) {
	tr := NewTracker(2, 1000)

	// Frame 1: both arrive. Frames 2-3: only Messi remains.
	tr.Observe(1, trackerTS, []Sighting{{Key: "Ronaldo", Distance: 0.2}, {Key: "Messi", Distance: 0.4}})
	tr.Observe(2, trackerTS, []Sighting{{Key: "Messi", Distance: 0.4}})
	events := tr.Observe(3, trackerTS, []Sighting{{Key: "Messi", Distance: 0.4}})

	if len(events) != 1 || events[0].Kind != EventDeparture || events[0].Key != "Ronaldo" {
		t.Fatalf("expected Ronaldo departure only, got %+v", events)
	}
	if keys := tr.VisibleKeys(); len(keys) != 1 || keys[0] != "Messi" {
		t.Errorf("expected only Messi visible, got %v", keys)
	}
}

func TestTrackerEventOrderDeterministic(t *testing.T) {
	tr := NewTracker(1, 1000)
	events := tr.Observe(1, trackerTS, []Sighting{
		{Key: "Messi", Distance: 0.4},
		{Key: "Ronaldo", Distance: 0.2},
		{Key: UnknownKey, Distance: 0.9},
	})

	want := []string{"Messi", "Ronaldo", UnknownKey}
	if len(events) != 3 {
		t.Fatalf("expected 3 arrivals, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Key != want[i] {
			t.Errorf("event %d: expected key %s in detection order, got %s", i, want[i], ev.Key)
		}
	}
}
