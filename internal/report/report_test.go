package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/vigilcam/vigil/internal/eventlog"
	"github.com/vigilcam/vigil/internal/recognize"
)

func row(key string, frame int, kind recognize.EventKind) eventlog.Row {
	return eventlog.Row{Key: key, Frame: frame, Kind: kind}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		rows []eventlog.Row
		want []Stats
	}{
		{
			name: "closed visit plus open visit",
			rows: []eventlog.Row{
				row("alice", 10, recognize.EventArrival),
				row("bob", 50, recognize.EventArrival),
				row("alice", 300, recognize.EventContinuation),
				row("alice", 450, recognize.EventDeparture),
			},
			want: []Stats{
				{Key: "alice", Arrivals: 1, Departures: 1, DwellFrames: 440},
				{Key: "bob", Arrivals: 1},
			},
		},
		{
			name: "dwell sums across visits",
			rows: []eventlog.Row{
				row("alice", 10, recognize.EventArrival),
				row("alice", 50, recognize.EventDeparture),
				row("alice", 200, recognize.EventArrival),
				row("alice", 260, recognize.EventDeparture),
			},
			want: []Stats{
				{Key: "alice", Arrivals: 2, Departures: 2, DwellFrames: 100},
			},
		},
		{
			name: "departure without arrival counts but adds no dwell",
			rows: []eventlog.Row{
				row("bob", 30, recognize.EventDeparture),
			},
			want: []Stats{
				{Key: "bob", Departures: 1},
			},
		},
		{
			name: "departure pairs with the latest arrival",
			rows: []eventlog.Row{
				// First log ends mid-visit; the next session's frames
				// restart from 1.
				row("alice", 100, recognize.EventArrival),
				row("alice", 5, recognize.EventArrival),
				row("alice", 45, recognize.EventDeparture),
			},
			want: []Stats{
				{Key: "alice", Arrivals: 2, Departures: 1, DwellFrames: 40},
			},
		},
		{
			name: "continuations alone still list the identity",
			rows: []eventlog.Row{
				row("unknown", 120, recognize.EventContinuation),
				row("unknown", 240, recognize.EventContinuation),
			},
			want: []Stats{
				{Key: "unknown"},
			},
		},
		{
			name: "keys keep first-seen order",
			rows: []eventlog.Row{
				row("carol", 5, recognize.EventArrival),
				row("unknown", 8, recognize.EventArrival),
				row("alice", 12, recognize.EventArrival),
				row("carol", 90, recognize.EventDeparture),
				row("unknown", 95, recognize.EventDeparture),
			},
			want: []Stats{
				{Key: "carol", Arrivals: 1, Departures: 1, DwellFrames: 85},
				{Key: "unknown", Arrivals: 1, Departures: 1, DwellFrames: 87},
				{Key: "alice", Arrivals: 1},
			},
		},
		{
			name: "empty input",
			rows: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.rows)
			if len(got) != len(tt.want) {
				t.Fatalf("Aggregate() returned %d stats, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("stats[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRenderChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.png")

	ok, err := RenderChart([]Stats{
		{Key: "alice", Arrivals: 3, Departures: 3, DwellFrames: 900},
		{Key: "unknown", Arrivals: 1},
	}, path)
	if err != nil {
		t.Fatalf("RenderChart() error: %v", err)
	}
	if !ok {
		t.Fatal("RenderChart() reported nothing rendered")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading chart: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("chart file is not a PNG")
	}
}

func TestRenderChartNoArrivals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.png")

	ok, err := RenderChart([]Stats{
		{Key: "alice", Departures: 2},
	}, path)
	if err != nil {
		t.Fatalf("RenderChart() error: %v", err)
	}
	if ok {
		t.Error("RenderChart() claimed a render with zero arrivals")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("chart file should not exist, stat err = %v", err)
	}
}
