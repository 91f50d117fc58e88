package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/sirupsen/logrus"
)

// File is the subset of *os.File the writer appends through.
type File interface {
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

func openFile(path string) (File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
}

const DefaultBackoff = 100 * time.Millisecond

type Options struct {
	Layout    Layout
	Codec     Codec
	Metadata  *Metadata
	QueueSize int
	Retries   int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	Logger  logrus.FieldLogger
	// OpenFile opens the stream, index and metrics files; defaults to os.OpenFile.
	OpenFile func(path string) (File, error)
}

// Stats describe the queue behaviour of a writer.
type Stats struct {
	Enqueued     int
	Written      int
	Blocked      int
	BlockedFor   time.Duration
	BytesWritten int64
	Retries      int
}

type job struct {
	record   *Record
	snapshot *Snapshot
	rows     any
}

// Writer serializes records and snapshots on a single goroutine, in the
// order they were enqueued. Enqueueing blocks while the queue is full.
type Writer struct {
	layout  Layout
	codec   Codec
	log     logrus.FieldLogger
	retries int
	backoff time.Duration

	stream      File
	index       File
	streamOff   int64
	indexOff    int64
	indexHeader bool

	open          func(path string) (File, error)
	metrics       File
	metricsOff    int64
	metricsHeader bool

	jobs chan job
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	statMu sync.Mutex
	stats  Stats
	err    error
}

// NewWriter creates the stream and index files, writes the metadata blob
// and starts the consumer.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("storage: no codec")
	}
	if opts.QueueSize < 0 {
		return nil, &dynamo.ConfigError{Field: "environment.io_queue_size", Reason: "must not be negative"}
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		opts.Logger = l
	}
	open := opts.OpenFile
	if open == nil {
		open = openFile
	}

	w := &Writer{
		layout:  opts.Layout,
		codec:   opts.Codec,
		log:     opts.Logger,
		retries: max(opts.Retries, 0),
		backoff: opts.Backoff,
		open:    open,
		jobs:    make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
	}

	var err error
	if w.stream, err = open(opts.Layout.Stream()); err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", dynamo.ErrIO, err)
	}
	if w.index, err = open(opts.Layout.Index()); err != nil {
		w.stream.Close()
		return nil, fmt.Errorf("%w: open index: %v", dynamo.ErrIO, err)
	}
	if opts.Metadata != nil {
		if err := w.appendBlob(0, "metadata", opts.Metadata); err != nil {
			w.stream.Close()
			w.index.Close()
			return nil, err
		}
	}

	go w.loop()
	return w, nil
}

func (w *Writer) Layout() Layout { return w.layout }
func (w *Writer) Codec() Codec   { return w.codec }

// Append enqueues a record. Empty records are ignored.
func (w *Writer) Append(ctx context.Context, r *Record) error {
	if r == nil || r.Empty() {
		return nil
	}
	return w.enqueue(ctx, job{record: r})
}

func (w *Writer) WriteSnapshot(ctx context.Context, s *Snapshot) error {
	return w.enqueue(ctx, job{snapshot: s})
}

// AppendMetrics enqueues rows for the metrics table. rows must be a slice
// of csv-tagged structs; the header is written with the first batch.
func (w *Writer) AppendMetrics(ctx context.Context, rows any) error {
	if rows == nil {
		return nil
	}
	return w.enqueue(ctx, job{rows: rows})
}

func (w *Writer) enqueue(ctx context.Context, j job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.Err(); err != nil {
		return err
	}

	select {
	case w.jobs <- j:
		w.count(0, false)
		return nil
	default:
	}

	w.log.WithField("queue_size", cap(w.jobs)).Debug("output queue full, waiting")
	start := time.Now()
	select {
	case w.jobs <- j:
		w.count(time.Since(start), true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) count(wait time.Duration, blocked bool) {
	w.statMu.Lock()
	defer w.statMu.Unlock()
	w.stats.Enqueued++
	if blocked {
		w.stats.Blocked++
		w.stats.BlockedFor += wait
	}
}

func (w *Writer) Stats() Stats {
	w.statMu.Lock()
	defer w.statMu.Unlock()
	return w.stats
}

// Err returns the permanent failure of the writer, if any.
func (w *Writer) Err() error {
	w.statMu.Lock()
	defer w.statMu.Unlock()
	return w.err
}

func (w *Writer) fail(err error) {
	w.statMu.Lock()
	defer w.statMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	for j := range w.jobs {
		// keep draining after a failure so producers never block forever
		if w.Err() != nil {
			continue
		}
		var err error
		switch {
		case j.record != nil:
			err = w.appendBlob(j.record.Timestep, j.record.Kinds(), j.record)
		case j.snapshot != nil:
			err = w.writeSnapshot(j.snapshot)
		case j.rows != nil:
			err = w.appendRows(j.rows)
		}
		if err != nil {
			w.log.WithError(err).Error("output failed permanently")
			w.fail(err)
			continue
		}
		w.statMu.Lock()
		w.stats.Written++
		w.statMu.Unlock()
	}
}

// Close drains the queue, closes the files and returns the first error.
// It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done

	var errs []error
	if err := w.Err(); err != nil {
		errs = append(errs, err)
	}
	for _, f := range []File{w.stream, w.index, w.metrics} {
		if f == nil {
			continue
		}
		if err := f.Sync(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("%w: sync: %v", dynamo.ErrIO, err))
		}
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("%w: close: %v", dynamo.ErrIO, err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// retry runs fn until it succeeds or the retry budget is spent, sleeping
// attempt*backoff between attempts.
func (w *Writer) retry(what string, fields logrus.Fields, fn func() error) error {
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			w.statMu.Lock()
			w.stats.Retries++
			w.statMu.Unlock()
			w.log.WithFields(fields).WithField("attempt", attempt).WithError(err).Warnf("%s failed, retrying", what)
			time.Sleep(time.Duration(attempt) * w.backoff)
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", dynamo.ErrIO, what, w.retries+1, err)
}

// appendAt writes data at *off, truncating a partial write before the next
// attempt, and advances *off on success.
func (w *Writer) appendAt(f File, off *int64, data []byte, what string, fields logrus.Fields) error {
	err := w.retry(what, fields, func() error {
		if _, err := f.WriteAt(data, *off); err != nil {
			if terr := f.Truncate(*off); terr != nil {
				w.log.WithFields(fields).WithError(terr).Warn("truncate after failed write")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	*off += int64(len(data))
	return nil
}

func (w *Writer) appendBlob(timestep uint64, kinds string, v any) error {
	var buf bytes.Buffer
	if err := w.codec.Encode(&buf, v); err != nil {
		return fmt.Errorf("encode %s at timestep %d: %w", kinds, timestep, err)
	}

	fields := logrus.Fields{"timestep": timestep, "kind": kinds, "path": w.layout.Stream()}
	entry := IndexEntry{Timestep: timestep, Offset: w.streamOff, Size: int64(buf.Len()), Kinds: kinds}
	if err := w.appendAt(w.stream, &w.streamOff, buf.Bytes(), "append record", fields); err != nil {
		return err
	}

	var row bytes.Buffer
	records := []IndexEntry{entry}
	var err error
	if !w.indexHeader {
		err = gocsv.Marshal(records, &row)
	} else {
		err = gocsv.MarshalWithoutHeaders(records, &row)
	}
	if err != nil {
		return fmt.Errorf("encode index entry: %w", err)
	}
	if err := w.appendAt(w.index, &w.indexOff, row.Bytes(), "append index", fields); err != nil {
		return err
	}
	w.indexHeader = true

	w.statMu.Lock()
	w.stats.BytesWritten += int64(buf.Len())
	w.statMu.Unlock()
	w.log.WithFields(fields).Debug("record written")
	return nil
}

func (w *Writer) appendRows(rows any) error {
	path := w.layout.Metrics()
	fields := logrus.Fields{"kind": "metrics", "path": path}
	if w.metrics == nil {
		err := w.retry("open metrics", fields, func() error {
			f, err := w.open(path)
			if err != nil {
				return err
			}
			w.metrics = f
			return nil
		})
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	var err error
	if !w.metricsHeader {
		err = gocsv.Marshal(rows, &buf)
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, &buf)
	}
	if err != nil {
		return fmt.Errorf("encode metrics rows: %w", err)
	}
	if err := w.appendAt(w.metrics, &w.metricsOff, buf.Bytes(), "append metrics", fields); err != nil {
		return err
	}
	w.metricsHeader = true
	w.log.WithFields(fields).Debug("metrics written")
	return nil
}

// writeSnapshot stores s under its timestep through a temporary file and a
// rename, so a reader never sees a partial snapshot.
func (w *Writer) writeSnapshot(s *Snapshot) error {
	var buf bytes.Buffer
	if err := w.codec.Encode(&buf, s); err != nil {
		return fmt.Errorf("encode snapshot at timestep %d: %w", s.Timestep, err)
	}
	path := w.layout.Snapshot(s.Timestep)
	fields := logrus.Fields{"timestep": s.Timestep, "kind": "snapshot", "path": path}

	err := w.retry("write snapshot", fields, func() error {
		return writeAtomic(path, buf.Bytes())
	})
	if err != nil {
		return err
	}
	w.log.WithFields(fields).Info("snapshot written")
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
