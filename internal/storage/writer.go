// Package storage implements the single-writer persistence actor: one
// goroutine owns the SQLite handle and the vector sink, everything else
// talks to it through a bounded queue.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/akorchagin/hostsentry/internal/metrics"
	"github.com/akorchagin/hostsentry/internal/model"
)

// ErrUnknownEventType is returned by Enqueue for events outside the
// closed type set.
var ErrUnknownEventType = errors.New("storage: unknown event type")

// ErrClosed is returned by Enqueue after shutdown has begun.
var ErrClosed = errors.New("storage: writer closed")

// DocumentSink receives the vector-index projection of each committed
// batch. Sink failures never roll back the SQL commit.
type DocumentSink interface {
	AddDocuments(ctx context.Context, docs []model.Document) error
}

// Options configures the writer.
type Options struct {
	// Path is the SQLite database file.
	Path string

	// QueueCapacity bounds the inbound queue; at capacity the oldest
	// queued event is dropped to admit the new one. Default 1000.
	QueueCapacity int

	// BatchSize triggers a flush when the pending batch reaches it.
	// Default 50.
	BatchSize int

	// BatchAge flushes a non-empty batch older than this. Default 3s.
	BatchAge time.Duration

	// Sink receives document projections after each commit. Nil
	// disables vector ingestion.
	Sink DocumentSink

	// EventsDir enables a JSONL audit trail when non-empty.
	EventsDir string

	Logger zerolog.Logger
}

// Writer is the persistence actor. All exported methods are safe for
// concurrent use; only the internal run loop touches the handles for
// writing.
type Writer struct {
	opts  Options
	db    *sql.DB
	queue chan model.UnifiedEvent

	mu     sync.Mutex
	closed bool

	stop    chan struct{}
	drained chan struct{}
	done    chan struct{}
}

// Open opens (creating if needed) the database, applies the schema and
// starts the writer loop.
func Open(opts Options) (*Writer, error) {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.BatchAge <= 0 {
		opts.BatchAge = 3 * time.Second
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if opts.EventsDir != "" {
		if err := os.MkdirAll(opts.EventsDir, 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("create events dir: %w", err)
		}
	}

	w := &Writer{
		opts:    opts,
		db:      db,
		queue:   make(chan model.UnifiedEvent, opts.QueueCapacity),
		stop:    make(chan struct{}),
		drained: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Enqueue validates and hands an event to the writer without blocking.
// Unknown types are rejected; a full queue evicts its oldest entry.
func (w *Writer) Enqueue(ev model.UnifiedEvent) error {
	if !ev.Type.Valid() {
		metrics.EventsRejected.Inc()
		return fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}

	now := time.Now().UTC()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	} else if ev.Timestamp.After(now.Add(time.Second)) {
		// Collector clock skew; clamp so ordering queries stay sane.
		ev.Timestamp = now
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	for {
		select {
		case w.queue <- ev:
			metrics.EventsEnqueued.WithLabelValues(string(ev.Type)).Inc()
			return nil
		default:
		}
		select {
		case <-w.queue:
			metrics.EventsDropped.Inc()
			w.opts.Logger.Warn().Msg("writer queue full, dropping oldest event")
		default:
		}
	}
}

// Done closes when the writer loop has exited, normally or not. The
// daemon watches it to detect a dead persistence path.
func (w *Writer) Done() <-chan struct{} { return w.done }

// Close stops intake, drains the queue up to the context deadline (or
// 5s, whichever is sooner) and releases the database handle.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)

	deadline := time.NewTimer(5 * time.Second)
	defer deadline.Stop()
	select {
	case <-w.drained:
	case <-ctx.Done():
	case <-deadline.C:
		w.opts.Logger.Warn().Msg("shutdown drain deadline hit, events may be lost")
	}
	return w.db.Close()
}

// run is the actor loop: accumulate, flush on size or age, drain on
// stop. A panic anywhere in the loop closes done so the daemon can
// react.
func (w *Writer) run() {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.opts.Logger.Error().Interface("panic", r).Msg("writer loop crashed")
		}
	}()

	var batch []model.UnifiedEvent
	batchStart := time.Now()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = nil
	}

	for {
		select {
		case ev := <-w.queue:
			if len(batch) == 0 {
				batchStart = time.Now()
			}
			batch = append(batch, ev)
			if len(batch) >= w.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			if len(batch) > 0 && time.Since(batchStart) > w.opts.BatchAge {
				flush()
			}
		case <-w.stop:
			for {
				select {
				case ev := <-w.queue:
					batch = append(batch, ev)
				default:
					flush()
					close(w.drained)
					return
				}
			}
		}
	}
}

// flush commits one batch to SQL, then best-effort appends the audit
// trail and feeds the vector sink. Only the SQL commit can fail the
// batch.
func (w *Writer) flush(batch []model.UnifiedEvent) {
	if err := w.saveBatch(batch); err != nil {
		metrics.BatchFailures.Inc()
		w.opts.Logger.Error().Err(err).Int("events", len(batch)).Msg("batch commit failed")
		return
	}
	metrics.BatchesCommitted.Inc()

	if w.opts.EventsDir != "" {
		if err := w.appendAudit(batch); err != nil {
			w.opts.Logger.Warn().Err(err).Msg("audit trail write failed")
		}
	}

	if w.opts.Sink != nil {
		docs := make([]model.Document, 0, len(batch))
		for _, ev := range batch {
			docs = append(docs, model.BuildDocument(ev))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.opts.Sink.AddDocuments(ctx, docs); err != nil {
			metrics.VectorFailures.Inc()
			w.opts.Logger.Warn().Err(err).Int("docs", len(docs)).Msg("vector ingest failed")
		}
	}
}

func (w *Writer) saveBatch(batch []model.UnifiedEvent) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO unified_events (timestamp, event_type, details, metadata_fields) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range batch {
		details, err := json.Marshal(ev.Details)
		if err != nil {
			return err
		}
		meta, err := json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		// RFC3339Nano text keeps lexicographic order chronological.
		ts := ev.Timestamp.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.Exec(ts, string(ev.Type), string(details), string(meta)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// appendAudit writes the batch as JSON lines into a per-day file.
func (w *Writer) appendAudit(batch []model.UnifiedEvent) error {
	name := filepath.Join(w.opts.EventsDir,
		fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("20060102")))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ev := range batch {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// GetRecentEvents returns up to limit newest-first events of one type,
// each flattened to {timestamp, ...details, ...metadata}. Reads run on
// their own connection and tolerate concurrent writer commits.
func (w *Writer) GetRecentEvents(eventType string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := w.db.Query(
		`SELECT timestamp, details, metadata_fields FROM unified_events
		 WHERE event_type = ? ORDER BY timestamp DESC LIMIT ?`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var ts, details, meta string
		if err := rows.Scan(&ts, &details, &meta); err != nil {
			return nil, err
		}

		flat := map[string]any{}
		if err := json.Unmarshal([]byte(details), &flat); err != nil {
			w.opts.Logger.Warn().Err(err).Msg("undecodable details row skipped")
			continue
		}
		var m map[string]string
		if err := json.Unmarshal([]byte(meta), &m); err == nil {
			for k, v := range m {
				flat[k] = v
			}
		}
		flat["timestamp"] = ts
		out = append(out, flat)
	}
	return out, rows.Err()
}
