package report

import (
	"os"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/vigilcam/vigil/internal/eventlog"
	"github.com/vigilcam/vigil/internal/recognize"
)

// Stats is one identity's presence aggregated across every scanned log.
type Stats struct {
	Key         string
	Arrivals    int
	Departures  int
	DwellFrames int
}

// Aggregate folds event rows into per-identity stats, keys in first-seen
// order. Dwell counts closed visits only: each departure pairs with the
// most recent arrival of its key, and the departure row's frame is the
// last frame the face was seen, so the difference is the visible span.
// An arrival with no departure (a visit still open when its session
// stopped) contributes no dwell; neither does a departure with no arrival
// (a log that starts mid-visit).
func Aggregate(rows []eventlog.Row) []Stats {
	index := make(map[string]int)
	pending := make(map[string]int) // open visit's arrival frame per key
	var stats []Stats

	for _, row := range rows {
		i, ok := index[row.Key]
		if !ok {
			i = len(stats)
			index[row.Key] = i
			stats = append(stats, Stats{Key: row.Key})
		}

		switch row.Kind {
		case recognize.EventArrival:
			stats[i].Arrivals++
			// A second arrival without a departure means a new session's
			// log; the dangling visit is unclosable and gets dropped.
			pending[row.Key] = row.Frame
		case recognize.EventDeparture:
			stats[i].Departures++
			if start, ok := pending[row.Key]; ok {
				if dwell := row.Frame - start; dwell >= 0 {
					stats[i].DwellFrames += dwell
				}
				delete(pending, row.Key)
			}
		}
	}
	return stats
}

// RenderChart writes a PNG bar chart of arrivals per identity. Identities
// that never arrived are left out; with no bars at all it reports false
// and writes nothing, since the chart library cannot render an empty
// series and an empty chart helps nobody.
func RenderChart(stats []Stats, path string) (bool, error) {
	var bars []chart.Value
	for _, s := range stats {
		if s.Arrivals == 0 {
			continue
		}
		bars = append(bars, chart.Value{Value: float64(s.Arrivals), Label: s.Key})
	}
	if len(bars) == 0 {
		return false, nil
	}

	graph := chart.BarChart{
		Title:    "Arrivals per identity",
		Height:   512,
		BarWidth: 60,
		Bars:     bars,
	}

	f, err := os.Create(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return false, err
	}
	return true, nil
}
