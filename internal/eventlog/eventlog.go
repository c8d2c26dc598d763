package eventlog

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/vigilcam/vigil/internal/recognize"
)

// Header is the column layout, written once per log file.
var Header = []string{"timestamp", "identity_or_unknown", "distance", "frame_index", "event_kind"}

// SessionPath names the log file for a session that started at the given
// time, e.g. logs/events_20250114_083015.csv.
func SessionPath(dir string, start time.Time) string {
	return filepath.Join(dir, "events_"+start.Format("20060102_150405")+".csv")
}

// Writer is the append-only CSV event log. One writer per session; rows are
// flushed as they arrive so a crash never loses more than the row in flight.
type Writer struct {
	file *os.File
	csv  *csv.Writer
}

// NewWriter opens the log file, creating the directory and file as needed.
// The header goes in only when the file is new or empty, so reopening an
// existing log appends cleanly.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &Writer{file: file, csv: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := w.csv.Write(Header); err != nil {
			file.Close()
			return nil, err
		}
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			file.Close()
			return nil, err
		}
	}
	return w, nil
}

// Append writes one event row and flushes it to disk.
func (w *Writer) Append(ctx context.Context, ev recognize.Event) error {
	row := []string{
		ev.TS.Format(time.RFC3339),
		ev.Key,
		// FormatFloat renders the empty-gallery distance as +Inf
		strconv.FormatFloat(ev.Distance, 'f', 4, 64),
		strconv.Itoa(ev.Frame),
		string(ev.Kind),
	}
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Row is one parsed event-log line.
type Row struct {
	TS       time.Time
	Key      string
	Distance float64
	Frame    int
	Kind     recognize.EventKind
}

// ReadFile parses one event log. Malformed rows are skipped, not fatal:
// a partially written line from a crashed session should not block
// reporting over everything else. Returns the rows and the skip count.
func ReadFile(path string) ([]Row, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows []Row
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				skipped++
				continue
			}
			return rows, skipped, err
		}
		if len(record) > 0 && record[0] == Header[0] {
			continue // header line
		}
		row, ok := parseRow(record)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func parseRow(record []string) (Row, bool) {
	if len(record) != len(Header) {
		return Row{}, false
	}
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return Row{}, false
	}
	if record[1] == "" {
		return Row{}, false
	}
	dist, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return Row{}, false
	}
	frame, err := strconv.Atoi(record[3])
	if err != nil {
		return Row{}, false
	}
	kind := recognize.EventKind(record[4])
	switch kind {
	case recognize.EventArrival, recognize.EventContinuation, recognize.EventDeparture:
	default:
		return Row{}, false
	}
	return Row{TS: ts, Key: record[1], Distance: dist, Frame: frame, Kind: kind}, true
}

// ReadDir parses every event log under dir, oldest session first. The
// timestamped filenames sort chronologically as plain strings.
func ReadDir(dir string) ([]Row, int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "events_*.csv"))
	if err != nil {
		return nil, 0, err
	}
	sort.Strings(paths)

	var rows []Row
	skipped := 0
	for _, path := range paths {
		fileRows, fileSkipped, err := ReadFile(path)
		if err != nil {
			return nil, 0, err
		}
		rows = append(rows, fileRows...)
		skipped += fileSkipped
	}
	return rows, skipped, nil
}
