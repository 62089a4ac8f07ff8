// Package audit keeps an append-only sqlite record of relay activity. The
// record is write-only: nothing in the server reads it back, so the
// in-memory state stays the single source of truth.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"tutorrelay/internal/config"
	"tutorrelay/internal/metrics"
	"tutorrelay/pkg/interfaces"
	"tutorrelay/pkg/types"
)

const (
	defaultQueueSize = 256
	defaultTimeout   = 5 * time.Second
)

const (
	insertSessionSQL = `INSERT INTO session_requests
		(session_id, student_name, tutor_name, course, requested_minutes, location, requested_at, notify_outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertResponseSQL = `INSERT INTO tutor_responses
		(session_id, tutor_name, student_name, status, session_code, outcome, responded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)

const sqlitePragmas = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA busy_timeout = 5000;
`

// Journal implements interfaces.Journal. Writes are queued to one writer
// goroutine; sqlite allows a single writer at a time.
type Journal struct {
	db      *sql.DB
	queue   chan record
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger

	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

type record struct {
	query string
	args  []interface{}
}

// Open creates the database file if needed, migrates it and starts the
// writer.
func Open(ctx context.Context, cfg *config.AuditConfig, m *metrics.Metrics, logger *zap.Logger) (*Journal, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqlitePragmas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db, cfg.QueueSize, cfg.Timeout, m, logger), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, queueSize int, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Journal {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Journal{
		db:       db,
		queue:    make(chan record, queueSize),
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
		shutdown: make(chan struct{}),
	}

	j.wg.Add(1)
	go j.writeLoop()

	return j
}

// RecordSession queues a session_requests row.
func (j *Journal) RecordSession(ctx context.Context, s *types.Session, outcome string) error {
	return j.enqueue(record{
		query: insertSessionSQL,
		args: []interface{}{
			s.ID, s.StudentName, s.TutorName, s.Course, s.RequestedMinutes, s.Location, s.Timestamp, outcome,
		},
	})
}

// RecordResponse queues a tutor_responses row.
func (j *Journal) RecordResponse(ctx context.Context, rec interfaces.ResponseRecord) error {
	var code interface{}
	if rec.SessionCode != nil {
		code = *rec.SessionCode
	}
	return j.enqueue(record{
		query: insertResponseSQL,
		args: []interface{}{
			rec.SessionID, rec.TutorName, rec.StudentName, rec.Status, code, rec.Outcome, rec.At,
		},
	})
}

// HealthCheck pings the database.
func (j *Journal) HealthCheck(ctx context.Context) error {
	j.mu.RLock()
	closed := j.closed
	j.mu.RUnlock()
	if closed {
		return ErrJournalClosed
	}
	return j.db.PingContext(ctx)
}

// Close writes out queued records and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.shutdown)
	j.mu.Unlock()

	j.wg.Wait()
	return j.db.Close()
}

// enqueue never blocks: a full queue drops the record.
func (j *Journal) enqueue(rec record) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrJournalClosed
	}

	select {
	case j.queue <- rec:
		return nil
	default:
		j.metrics.JournalDropped()
		return ErrQueueFull
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()

	for {
		select {
		case rec := <-j.queue:
			j.write(rec)
		case <-j.shutdown:
			// enqueue refuses new records once closed is set, so the
			// queue only shrinks from here.
			for {
				select {
				case rec := <-j.queue:
					j.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.db.ExecContext(ctx, rec.query, rec.args...); err != nil {
		j.logger.Error("Journal write failed", zap.Error(err))
	}
}
