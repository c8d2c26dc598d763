package engine

import (
	"context"
	"errors"
	"io"

	"github.com/vigilcam/vigil/internal/recognize"
	"github.com/vigilcam/vigil/internal/types"
)

// Source yields frames in capture order and io.EOF when the stream ends.
type Source interface {
	Next() (*types.Frame, error)
}

// Encoder turns one JPEG frame into face detections. A *types.FrameError
// marks a single bad frame; any other error is fatal to the session.
type Encoder interface {
	ProcessFrame(data []byte) ([]types.FaceResult, error)
}

// EventSink receives tracker events. A failed append is retried once, so
// implementations may be called twice for the same event.
type EventSink interface {
	Append(ctx context.Context, ev recognize.Event) error
}

// SnapshotSink persists an unknown-face crop.
type SnapshotSink interface {
	Save(frame *types.Frame, face types.FaceResult) (string, error)
}

// Annotator renders a per-frame overlay. faces and matches run in
// parallel: matches[i] is the gallery verdict for faces[i].
type Annotator interface {
	Draw(ctx context.Context, frame *types.Frame, faces []types.FaceResult, matches []recognize.Match) error
}

// Config wires the collaborators for one camera session. Source, Encoder,
// Gallery, and Tracker are required; Throttle only when Snapshots is set.
type Config struct {
	Source    Source
	Encoder   Encoder
	Gallery   *recognize.Gallery
	Threshold float64
	Tracker   *recognize.Tracker
	Throttle  *recognize.Throttler
	Sinks     []EventSink
	Snapshots SnapshotSink
	Annotator Annotator
	Warn      func(format string, args ...any) // nil silences warnings
}

// Stats summarizes one camera session.
type Stats struct {
	Frames     int // frames pulled from the source
	Skipped    int // frames the encoder failed on
	Detections int // faces detected across all frames
	Events     int // tracker events produced
	Dropped    int // sink writes abandoned after a retry
	Snapshots  int // unknown-face crops written
}

// Engine drives the per-frame recognition cycle: pull, encode, match,
// track, dispatch. One frame is fully processed before the next is
// pulled, so the tracker always sees frames in order.
type Engine struct {
	cfg           Config
	stats         Stats
	annotatorDown bool
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run pulls frames until the source ends, ctx is canceled, or a hard
// failure occurs. The stats are valid in every case, including error
// returns.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	for {
		// 1. Cooperative cancellation check between frames.
		select {
		case <-ctx.Done():
			return e.stats, nil
		default:
		}

		// 2. Pull the next frame.
		frame, err := e.cfg.Source.Next()
		if err == io.EOF {
			return e.stats, nil
		}
		if err != nil {
			// Cancellation tears the capture process down mid-stream and
			// surfaces here as a read error; that is a clean stop.
			if ctx.Err() != nil {
				return e.stats, nil
			}
			return e.stats, err
		}
		e.stats.Frames++

		// 3. Detect and encode faces.
		faces, err := e.cfg.Encoder.ProcessFrame(frame.Data)
		if err != nil {
			var frameErr *types.FrameError
			if errors.As(err, &frameErr) {
				e.stats.Skipped++
				e.warnf("frame %d skipped: %v", frame.Index, err)
				continue
			}
			return e.stats, err
		}
		e.stats.Detections += len(faces)

		// 4. Match every detection against the gallery.
		matches := make([]recognize.Match, len(faces))
		sightings := make([]recognize.Sighting, len(faces))
		for i, face := range faces {
			m := e.cfg.Gallery.Match(face.Vec, e.cfg.Threshold)
			matches[i] = m
			sightings[i] = recognize.Sighting{Key: m.Key(), Distance: m.Distance}
		}

		// 5. Fold the frame into the tracker and fan events out to every
		// sink. An empty frame still advances it so absences can mature
		// into departures.
		for _, ev := range e.cfg.Tracker.Observe(frame.Index, frame.TS, sightings) {
			e.stats.Events++
			e.dispatch(ctx, ev)
		}

		// 6. Snapshot unknown faces, subject to the cooldown. The
		// throttler updates on the first grant, so a frame full of
		// unknowns still yields at most one capture.
		if e.cfg.Snapshots != nil {
			for i, m := range matches {
				if m.Known() || !e.cfg.Throttle.Allow(frame.Index) {
					continue
				}
				if _, err := e.cfg.Snapshots.Save(frame, faces[i]); err != nil {
					e.warnf("snapshot dropped (frame %d): %v", frame.Index, err)
					continue
				}
				e.stats.Snapshots++
			}
		}

		// 7. Draw the overlay last; it observes state and never changes
		// it. One failure retires it for the rest of the session.
		if e.cfg.Annotator != nil && !e.annotatorDown {
			if err := e.cfg.Annotator.Draw(ctx, frame, faces, matches); err != nil {
				e.annotatorDown = true
				e.warnf("overlay disabled: %v", err)
			}
		}
	}
}

// dispatch writes one event to every sink, retrying each failed sink once
// before abandoning that sink's copy of the event.
func (e *Engine) dispatch(ctx context.Context, ev recognize.Event) {
	for _, sink := range e.cfg.Sinks {
		if err := sink.Append(ctx, ev); err != nil {
			if err = sink.Append(ctx, ev); err != nil {
				e.stats.Dropped++
				e.warnf("event dropped (%s %s frame %d): %v", ev.Kind, ev.Key, ev.Frame, err)
			}
		}
	}
}

func (e *Engine) warnf(format string, args ...any) {
	if e.cfg.Warn != nil {
		e.cfg.Warn(format, args...)
	}
}
