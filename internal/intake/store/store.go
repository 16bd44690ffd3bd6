// Package store persists diagnosis records: a local cache that answers
// immediate reads and a remote mirror that converges in the background.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/retrier"
	"lead-intake/internal/intake/errorlog"
	"lead-intake/internal/intake/notify"
	"lead-intake/internal/intake/pipeline"
	"lead-intake/internal/models"
)

// Remote is the mirror side of the store.
type Remote interface {
	Insert(ctx context.Context, rec *models.DiagnosisRecord) error
	Update(ctx context.Context, rec *models.DiagnosisRecord) error
	Delete(ctx context.Context, ids []string) (int64, error)
	Query(ctx context.Context, f Filter) (*Page, error)
}

// Alerter is told when a mirror write gives up.
type Alerter interface {
	MirrorExhausted(ctx context.Context, e notify.Event)
}

// MirrorAttempts is how many times a mirror write is tried before it is
// logged and alerted on. Deps.Retry supplies only the delay.
const MirrorAttempts = 3

// ErrNoRemote is returned by admin operations when no mirror is configured.
var ErrNoRemote = errors.New("remote store not configured")

type Deps struct {
	Local    *LocalStore
	Remote   Remote // nil runs local-only
	Runner   *pipeline.Runner
	Retry    retrier.Policy
	ErrorLog errorlog.Sink
	Alerts   Alerter
	Logger   logger.Logger
}

// Store writes the local cache first and mirrors to the remote store in the
// background. Only local failures reach the caller.
type Store struct {
	local    *LocalStore
	remote   Remote
	runner   *pipeline.Runner
	retry    retrier.Policy
	errorLog errorlog.Sink
	alerts   Alerter
	logger   logger.Logger

	// pending holds, per record id, the completion of the last scheduled
	// mirror write; each new write waits on it, so writes of one record
	// reach the remote store in the order they were scheduled.
	mu      sync.Mutex
	pending map[string]chan struct{}

	now func() time.Time
}

func New(d Deps) *Store {
	retry := d.Retry
	retry.Attempts = MirrorAttempts
	return &Store{
		local:    d.Local,
		remote:   d.Remote,
		runner:   d.Runner,
		retry:    retry,
		errorLog: d.ErrorLog,
		alerts:   d.Alerts,
		logger:   d.Logger.WithFields(map[string]interface{}{"component": "store"}),
		pending:  map[string]chan struct{}{},
		now:      time.Now,
	}
}

// Create appends rec locally and schedules the remote insert.
func (s *Store) Create(ctx context.Context, rec *models.DiagnosisRecord) error {
	if err := s.local.Append(ctx, rec); err != nil {
		return apperrors.NewLocalStorageUnavailableError(err)
	}
	s.scheduleMirror(ctx, "insert", *rec)
	return nil
}

// Get reads a record from the local cache by id.
func (s *Store) Get(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	rec, err := s.local.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NewRecordNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewLocalStorageUnavailableError(err)
	}
	return rec, nil
}

// Resolve is Get with the fallback used by updates: when id is unknown the
// most recent record still in the test state stands in for it.
func (s *Store) Resolve(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	rec, err := s.local.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		rec, err = s.local.MostRecentTest(ctx)
		if err == nil {
			s.logger.Warn("record id not found, using most recent test record", map[string]interface{}{
				"requestedId": id,
				"resolvedId":  rec.ID,
			})
		}
	}
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NewRecordNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewLocalStorageUnavailableError(err)
	}
	return rec, nil
}

// Update applies upd to the record resolved from id, locally and then in
// the background on the mirror. It returns the updated record.
func (s *Store) Update(ctx context.Context, id string, upd models.RecordUpdate) (*models.DiagnosisRecord, error) {
	rec, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	upd.Apply(rec, s.now().UTC())
	if err := s.local.Put(ctx, rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NewRecordNotFoundError(rec.ID)
		}
		return nil, apperrors.NewLocalStorageUnavailableError(err)
	}

	s.scheduleMirror(ctx, "update", *rec)
	return rec, nil
}

// HighestNumber scans the local cache for the largest allocated number.
func (s *Store) HighestNumber(ctx context.Context, prefix string) (int64, error) {
	return s.local.HighestNumber(ctx, prefix)
}

// Query runs an admin query against the mirror.
func (s *Store) Query(ctx context.Context, f Filter) (*Page, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	return s.remote.Query(ctx, f)
}

// PurgeResult counts the rows removed from each store.
type PurgeResult struct {
	Local  int64 `json:"local"`
	Remote int64 `json:"remote"`
}

// Purge deletes ids from both stores. It is the only physical deletion.
func (s *Store) Purge(ctx context.Context, ids []string) (PurgeResult, error) {
	var res PurgeResult

	n, err := s.local.Delete(ctx, ids)
	if err != nil {
		return res, apperrors.NewLocalStorageUnavailableError(err)
	}
	res.Local = n

	if s.remote != nil {
		n, err := s.remote.Delete(ctx, ids)
		if err != nil {
			return res, fmt.Errorf("purge remote: %w", err)
		}
		res.Remote = n
	}

	s.logger.Info("records purged", map[string]interface{}{
		"ids":    ids,
		"local":  res.Local,
		"remote": res.Remote,
	})
	return res, nil
}

func (s *Store) scheduleMirror(ctx context.Context, op string, rec models.DiagnosisRecord) {
	if s.remote == nil {
		return
	}

	write := s.remote.Insert
	if op == "update" {
		write = s.remote.Update
	}

	done := make(chan struct{})
	s.mu.Lock()
	prev := s.pending[rec.ID]
	s.pending[rec.ID] = done
	s.mu.Unlock()

	s.runner.Go(ctx, "mirror."+op, func(ctx context.Context) error {
		defer s.finishMirror(rec.ID, done)
		if prev != nil {
			<-prev
		}
		return s.mirror(ctx, op, &rec, write)
	})
}

func (s *Store) finishMirror(id string, done chan struct{}) {
	s.mu.Lock()
	if s.pending[id] == done {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	close(done)
}

// mirror retries write under the fixed-delay policy. On exhaustion it leaves
// one error-log entry and one alert; the local copy stays as written.
func (s *Store) mirror(ctx context.Context, op string, rec *models.DiagnosisRecord,
	write func(context.Context, *models.DiagnosisRecord) error) error {

	attempts, err := s.retry.Do(func() error {
		return write(ctx, rec)
	}, func(err error, attempt int) {
		s.logger.Warn("remote mirror attempt failed", map[string]interface{}{
			"operation": op,
			"recordId":  rec.ID,
			"attempt":   attempt,
			"error":     err.Error(),
		})
	})
	if err == nil {
		return nil
	}

	s.errorLog.Record(ctx, errorlog.Entry{
		ErrorType:          apperrors.ErrCodeRemoteMirrorExhausted,
		ConsultationNumber: rec.ConsultationNumber,
		Phone:              rec.Contact.Phone,
		Residence:          rec.Contact.Residence,
		AcquisitionSource:  string(rec.AcquisitionSource),
		Message:            err.Error(),
		Details: map[string]interface{}{
			"operation": op,
			"recordId":  rec.ID,
		},
		RetryCount: attempts,
	})
	if s.alerts != nil {
		s.alerts.MirrorExhausted(ctx, notify.Event{
			ConsultationNumber: rec.ConsultationNumber,
			Phone:              rec.Contact.Phone,
			Source:             rec.AcquisitionSource,
			Operation:          op,
			Attempts:           attempts,
			Err:                err.Error(),
		})
	}
	return apperrors.NewRemoteMirrorExhaustedError(attempts, err)
}
