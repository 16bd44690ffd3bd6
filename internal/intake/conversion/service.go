// Package conversion runs the submission pipeline: scoring, the one-way
// test-to-lead conversion and direct lead submission.
package conversion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"

	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/metrics"
	"lead-intake/internal/common/validation"
	"lead-intake/internal/diagnosis/coder"
	"lead-intake/internal/diagnosis/scoring"
	"lead-intake/internal/intake/crmsync"
	"lead-intake/internal/intake/duplicate"
	"lead-intake/internal/intake/errorlog"
	"lead-intake/internal/intake/notify"
	"lead-intake/internal/intake/pipeline"
	"lead-intake/internal/intake/sequence"
	"lead-intake/internal/models"
)

type Store interface {
	Create(ctx context.Context, rec *models.DiagnosisRecord) error
	Get(ctx context.Context, id string) (*models.DiagnosisRecord, error)
	Resolve(ctx context.Context, id string) (*models.DiagnosisRecord, error)
	Update(ctx context.Context, id string, upd models.RecordUpdate) (*models.DiagnosisRecord, error)
}

type DuplicateChecker interface {
	Check(ctx context.Context, phone string) duplicate.Result
}

type NumberAllocator interface {
	Allocate(ctx context.Context, contact models.Contact, source models.AcquisitionSource) sequence.Allocation
}

type Registrar interface {
	Submit(ctx context.Context, s crmsync.Submission) crmsync.Outcome
}

type Notifier interface {
	CaseCreated(ctx context.Context, e notify.Event)
	DuplicateDetected(ctx context.Context, e notify.Event)
	SyncFailed(ctx context.Context, e notify.Event)
}

type Deps struct {
	Store      Store
	Duplicates DuplicateChecker
	Numbers    NumberAllocator
	CRM        Registrar
	Notifier   Notifier
	ErrorLog   errorlog.Sink
	Runner     *pipeline.Runner
	Claims     Claimer // nil disables the cross-process claim
	Logger     logger.Logger

	// DefaultConsultationType fills an empty contact consultation type.
	DefaultConsultationType string
}

type Service struct {
	store       Store
	duplicates  DuplicateChecker
	numbers     NumberAllocator
	crm         Registrar
	notifier    Notifier
	errorLog    errorlog.Sink
	runner      *pipeline.Runner
	claims      Claimer
	logger      logger.Logger
	defaultType string

	locks *kmutex.Kmutex
	now   func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	return &Service{
		store:       d.Store,
		duplicates:  d.Duplicates,
		numbers:     d.Numbers,
		crm:         d.CRM,
		notifier:    d.Notifier,
		errorLog:    d.ErrorLog,
		runner:      d.Runner,
		claims:      d.Claims,
		logger:      d.Logger.WithFields(map[string]interface{}{"component": "conversion"}),
		defaultType: d.DefaultConsultationType,
		locks:       kmutex.New(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Diagnosis is the scored questionnaire.
type Diagnosis struct {
	Coded     models.CodedAnswers      `json:"codedAnswers"`
	Result    models.EligibilityResult `json:"result"`
	Defaulted []string                 `json:"defaulted,omitempty"`
}

// Result is the outcome of a submission or conversion.
type Result struct {
	Record             *models.DiagnosisRecord `json:"record"`
	ConsultationNumber string                  `json:"consultationNumber,omitempty"`
	Registered         bool                    `json:"registered"`
	AlreadyConverted   bool                    `json:"alreadyConverted"`
	NumberDegraded     bool                    `json:"numberDegraded,omitempty"`
}

// Score codes and scores answers without persisting anything.
func (s *Service) Score(answers models.Answers) Diagnosis {
	coded, defaulted := coder.EncodeReport(answers)
	if len(defaulted) > 0 {
		s.logger.Debug("answers coded with defaults", map[string]interface{}{
			"code":      string(apperrors.ErrCodeCodingDefault),
			"questions": defaulted,
		})
	}
	return Diagnosis{Coded: coded, Result: scoring.Score(coded), Defaulted: defaulted}
}

// SubmitQuiz stores a scored questionnaire as a test record with a
// placeholder contact.
func (s *Service) SubmitQuiz(ctx context.Context, answers models.Answers) (*models.DiagnosisRecord, error) {
	diag := s.Score(answers)
	now := s.now().UTC()

	rec := &models.DiagnosisRecord{
		ID:                s.newID(),
		CreatedAt:         now,
		UpdatedAt:         now,
		Status:            models.StatusPending,
		AcquisitionSource: models.SourceTest,
		Contact:           models.Contact{Name: models.PlaceholderName},
		OriginalAnswers:   answers,
		CodedAnswers:      &diag.Coded,
		Result:            &diag.Result,
		DuplicateCount:    1,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	metrics.Submissions.WithLabelValues(string(models.SourceTest)).Inc()
	s.logger.Info("questionnaire stored", map[string]interface{}{
		"recordId":       rec.ID,
		"recommendation": string(diag.Result.Recommendation),
	})
	return rec, nil
}

// Get reads a record from the local cache.
func (s *Service) Get(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	return s.store.Get(ctx, id)
}

// Convert moves a test record to converted: duplicate check, number
// allocation, CRM registration, record update, notifications. A record that
// is already terminal is returned unchanged with no external calls.
func (s *Service) Convert(ctx context.Context, id string, contact models.Contact) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	contact, err := s.normalizeContact(contact)
	if err != nil {
		return nil, err
	}

	// id may resolve to another record, so the lock is keyed on the
	// resolved id and the record is read again once it is held.
	rec, err := s.store.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if result, done := s.alreadyConverted(rec); done {
		return result, nil
	}

	s.locks.Lock(rec.ID)
	defer s.locks.Unlock(rec.ID)

	if rec, err = s.store.Get(ctx, rec.ID); err != nil {
		return nil, err
	}
	if result, done := s.alreadyConverted(rec); done {
		return result, nil
	}

	if s.claims != nil {
		release, ok, err := s.claims.Claim(ctx, rec.ID)
		switch {
		case err != nil:
			s.logger.Warn("conversion claim unavailable, continuing with local lock", map[string]interface{}{
				"recordId": rec.ID,
				"error":    err.Error(),
			})
		case !ok:
			return nil, apperrors.NewConversionInProgressError(rec.ID)
		default:
			defer release()
			// another process may have finished before the claim
			if rec, err = s.store.Get(ctx, rec.ID); err != nil {
				return nil, err
			}
			if result, done := s.alreadyConverted(rec); done {
				return result, nil
			}
		}
	}

	next, _ := rec.AcquisitionSource.Convert()
	submittedAt := s.now().UTC()

	dup := s.duplicates.Check(ctx, contact.Phone)
	alloc := s.numbers.Allocate(ctx, contact, next)
	if contact.Name == "" {
		contact.Name = alloc.Label
	}
	outcome := s.crm.Submit(ctx, crmsync.Submission{
		ConsultationNumber: alloc.Label,
		Contact:            contact,
		Source:             next,
		SubmittedAt:        submittedAt,
		Coded:              rec.CodedAnswers,
	})

	updated, err := s.store.Update(ctx, rec.ID, models.RecordUpdate{
		Contact:            contact,
		AcquisitionSource:  next,
		ConsultationNumber: alloc.Label,
		Status:             statusOf(outcome),
		IsDuplicate:        dup.IsDuplicate,
		DuplicateCount:     dup.Count,
	})
	if err != nil {
		return nil, err
	}

	s.afterRegistration(ctx, updated, dup, outcome)
	metrics.Conversions.WithLabelValues(string(statusOf(outcome))).Inc()

	return &Result{
		Record:             updated,
		ConsultationNumber: alloc.Label,
		Registered:         outcome.Registered,
		NumberDegraded:     alloc.Degraded,
	}, nil
}

// SubmitDirect registers a lead from a contact form. The record starts in
// the channel's terminal state; answers are optional.
func (s *Service) SubmitDirect(ctx context.Context, contact models.Contact, channel models.Channel, answers models.Answers) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	if !channel.Valid() {
		return nil, apperrors.NewInputValidationError("unknown channel " + string(channel))
	}
	contact, err := s.normalizeContact(contact)
	if err != nil {
		return nil, err
	}
	source := channel.Source()
	now := s.now().UTC()

	rec := &models.DiagnosisRecord{
		ID:                s.newID(),
		CreatedAt:         now,
		UpdatedAt:         now,
		AcquisitionSource: source,
	}
	if len(answers) > 0 {
		diag := s.Score(answers)
		rec.OriginalAnswers = answers
		rec.CodedAnswers = &diag.Coded
		rec.Result = &diag.Result
	}

	dup := s.duplicates.Check(ctx, contact.Phone)
	alloc := s.numbers.Allocate(ctx, contact, source)
	if contact.Name == "" {
		contact.Name = alloc.Label
	}
	outcome := s.crm.Submit(ctx, crmsync.Submission{
		ConsultationNumber: alloc.Label,
		Contact:            contact,
		Source:             source,
		SubmittedAt:        now,
		Coded:              rec.CodedAnswers,
	})

	rec.Contact = contact
	rec.ConsultationNumber = alloc.Label
	rec.Status = statusOf(outcome)
	rec.IsDuplicate = dup.IsDuplicate
	rec.DuplicateCount = dup.Count
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.afterRegistration(ctx, rec, dup, outcome)
	metrics.Submissions.WithLabelValues(string(source)).Inc()

	return &Result{
		Record:             rec,
		ConsultationNumber: alloc.Label,
		Registered:         outcome.Registered,
		NumberDegraded:     alloc.Degraded,
	}, nil
}

func (s *Service) alreadyConverted(rec *models.DiagnosisRecord) (*Result, bool) {
	if _, ok := rec.AcquisitionSource.Convert(); ok {
		return nil, false
	}
	metrics.Conversions.WithLabelValues("noop").Inc()
	s.logger.Info("record already converted", map[string]interface{}{
		"recordId":          rec.ID,
		"acquisitionSource": string(rec.AcquisitionSource),
	})
	return &Result{
		Record:             rec,
		ConsultationNumber: rec.ConsultationNumber,
		Registered:         rec.Status == models.StatusRegistered,
		AlreadyConverted:   true,
	}, true
}

func (s *Service) normalizeContact(c models.Contact) (models.Contact, error) {
	c.Phone = validation.NormalizePhone(c.Phone)
	if !validation.ValidatePhone(c.Phone) {
		return c, apperrors.NewInputValidationError("phone must be a Korean mobile number")
	}
	if c.ConsultationType == "" {
		c.ConsultationType = s.defaultType
	}
	return c, nil
}

// afterRegistration queues the best-effort tail of a submission.
func (s *Service) afterRegistration(ctx context.Context, rec *models.DiagnosisRecord, dup duplicate.Result, outcome crmsync.Outcome) {
	event := eventFor(rec)
	event.DuplicateCount = dup.Count
	event.PriorOwner = dup.PriorOwner

	if !outcome.Registered {
		event.ErrorType = outcome.ErrorType
		event.Attempts = outcome.Attempts
		if outcome.Failure != nil {
			event.Err = outcome.Failure.Details
		}
		s.errorLog.Record(ctx, errorlog.Entry{
			ErrorType:          apperrors.ErrCodeCRMSyncFailed,
			ConsultationNumber: rec.ConsultationNumber,
			Phone:              rec.Contact.Phone,
			Residence:          rec.Contact.Residence,
			AcquisitionSource:  string(rec.AcquisitionSource),
			Message:            event.Err,
			Details:            failureMetadata(outcome),
			RetryCount:         outcome.Attempts,
		})
	}

	s.runner.Go(ctx, "notify", func(ctx context.Context) error {
		if outcome.Registered {
			s.notifier.CaseCreated(ctx, event)
		} else {
			s.notifier.SyncFailed(ctx, event)
		}
		if dup.IsDuplicate {
			s.notifier.DuplicateDetected(ctx, event)
		}
		return nil
	})
}

func eventFor(rec *models.DiagnosisRecord) notify.Event {
	e := notify.Event{
		ConsultationNumber: rec.ConsultationNumber,
		Name:               rec.Contact.Name,
		Phone:              rec.Contact.Phone,
		Residence:          rec.Contact.Residence,
		ConsultationType:   rec.Contact.ConsultationType,
		Source:             rec.AcquisitionSource,
		SubmittedAt:        rec.UpdatedAt,
	}
	if rec.CodedAnswers != nil {
		sum := coder.Summarize(*rec.CodedAnswers)
		e.Summary = &sum
	}
	return e
}

func failureMetadata(outcome crmsync.Outcome) map[string]interface{} {
	if outcome.Failure == nil {
		return map[string]interface{}{"errorType": string(outcome.ErrorType)}
	}
	return outcome.Failure.Metadata
}

func statusOf(outcome crmsync.Outcome) models.RecordStatus {
	if outcome.Registered {
		return models.StatusRegistered
	}
	return models.StatusSyncFailed
}
