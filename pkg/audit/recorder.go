package audit

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBufferSize = 1024

// Event is a single audit trail entry.
type Event struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Recorder writes audit events to the audit_log table through a buffered
// channel drained by a background worker.
type Recorder struct {
	db      *sql.DB
	log     *logrus.Logger
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	dropped uint64
	now     func() time.Time
}

// NewRecorder creates a recorder and starts its drain worker.
func NewRecorder(db *sql.DB, log *logrus.Logger, bufferSize int) *Recorder {
	if log == nil {
		log = logrus.New()
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	r := &Recorder{
		db:     db,
		log:    log,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
		now:    func() time.Time { return time.Now().UTC() },
	}

	r.wg.Add(1)
	go r.drain()

	return r
}

// Record enqueues an audit event. When the buffer is full the event is
// dropped and counted rather than blocking the caller.
func (r *Recorder) Record(_ context.Context, action, actorID, documentID, status string) {
	ev := Event{
		Action:     action,
		ActorID:    actorID,
		DocumentID: documentID,
		Status:     status,
		RecordedAt: r.now(),
	}

	select {
	case r.events <- ev:
	default:
		atomic.AddUint64(&r.dropped, 1)
		r.log.WithFields(logrus.Fields{
			"action":      action,
			"document_id": documentID,
		}).Warn("audit buffer full, event dropped")
	}
}

// Dropped returns the number of events dropped due to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

func (r *Recorder) drain() {
	defer r.wg.Done()

	for ev := range r.events {
		if err := r.insert(ev); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"action":      ev.Action,
				"actor_id":    ev.ActorID,
				"document_id": ev.DocumentID,
			}).Error("failed to persist audit event")
		}
	}
	close(r.done)
}

func (r *Recorder) insert(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, actor_id, document_id, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.Action, ev.ActorID, ev.DocumentID, ev.Status, ev.RecordedAt)
	return err
}

// Close stops accepting events and waits for the queue to drain, up to the
// context deadline.
func (r *Recorder) Close(ctx context.Context) error {
	close(r.events)

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListByDocument returns the newest audit entries for a document.
func (r *Recorder) ListByDocument(ctx context.Context, documentID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, actor_id, document_id, status, recorded_at
		FROM audit_log
		WHERE document_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2`,
		documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.ActorID, &ev.DocumentID, &ev.Status, &ev.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
