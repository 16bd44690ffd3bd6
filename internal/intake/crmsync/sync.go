// Package crmsync registers finished submissions as CRM cases with bounded
// fixed-delay retries.
package crmsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lead-intake/internal/common/crm"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/metrics"
	"lead-intake/internal/common/retrier"
	"lead-intake/internal/diagnosis/coder"
	"lead-intake/internal/models"
)

// CaseCreator is the part of the CRM client used for registration.
type CaseCreator interface {
	CreateCase(ctx context.Context, req crm.CreateCaseRequest) (*crm.CreateCaseResult, error)
}

// Submission is what gets registered.
type Submission struct {
	ConsultationNumber string
	Contact            models.Contact
	Source             models.AcquisitionSource
	SubmittedAt        time.Time
	Coded              *models.CodedAnswers
}

// Outcome reports a registration. Registered is the authoritative signal;
// when false, Failure carries the classified final error.
type Outcome struct {
	Registered bool
	CaseID     string
	Attempts   int
	Failure    *apperrors.StandardError
	ErrorType  apperrors.SyncErrorType
}

type Client struct {
	crm      CaseCreator
	caseType string
	retry    retrier.Policy
	logger   logger.Logger
}

func NewClient(creator CaseCreator, caseType string, policy retrier.Policy, log logger.Logger) *Client {
	return &Client{
		crm:      creator,
		caseType: caseType,
		retry:    policy,
		logger:   log.WithFields(map[string]interface{}{"component": "crmsync"}),
	}
}

// Submit creates the case, retrying every failure. It does not return an
// error: exhaustion is reported through the Outcome.
func (c *Client) Submit(ctx context.Context, s Submission) Outcome {
	req := c.BuildRequest(s)

	var (
		result   *crm.CreateCaseResult
		lastType apperrors.SyncErrorType
	)
	attempts, err := c.retry.Do(func() error {
		res, err := c.crm.CreateCase(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, func(err error, attempt int) {
		lastType = Classify(err)
		metrics.CRMAttempts.WithLabelValues("failure", string(lastType)).Inc()
		c.logger.Warn("crm case creation failed", map[string]interface{}{
			"consultationNumber": s.ConsultationNumber,
			"attempt":            attempt,
			"errorType":          string(lastType),
			"error":              err.Error(),
		})
	})

	if err != nil {
		if lastType == "" {
			lastType = Classify(err)
		}
		failure := apperrors.NewCRMSyncFailedError(lastType, attempts, err)
		c.logger.Error("crm registration exhausted", map[string]interface{}{
			"consultationNumber": s.ConsultationNumber,
			"attempts":           attempts,
			"errorType":          string(lastType),
			"severity":           string(lastType.Severity()),
			"error":              err.Error(),
		})
		return Outcome{Attempts: attempts, Failure: failure, ErrorType: lastType}
	}

	metrics.CRMAttempts.WithLabelValues("success", "").Inc()
	out := Outcome{Registered: true, Attempts: attempts}
	if result != nil {
		out.CaseID = string(result.CaseID)
	}
	c.logger.Info("crm case created", map[string]interface{}{
		"consultationNumber": s.ConsultationNumber,
		"caseId":             out.CaseID,
		"attempts":           attempts,
	})
	return out
}

// BuildRequest renders the case request. The display name is the
// consultation number.
func (c *Client) BuildRequest(s Submission) crm.CreateCaseRequest {
	return crm.CreateCaseRequest{
		CaseType:    c.caseType,
		Name:        s.ConsultationNumber,
		Phone:       crm.FormatPhone(s.Contact.Phone),
		LivingPlace: NormalizeResidence(s.Contact.Residence),
		Memo:        Memo(s),
	}
}

// Memo is the case note shown to the assigned consultant.
func Memo(s Submission) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	b.WriteString("[홈페이지 상담 신청]\n")
	line("접수일시", s.SubmittedAt.In(crm.Seoul()).Format("2006-01-02 15:04"))
	line("상담번호", s.ConsultationNumber)
	line("이름", s.Contact.Name)
	line("거주지", NormalizeResidence(s.Contact.Residence))
	line("상담유형", s.Contact.ConsultationType)
	line("유입경로", string(s.Source))

	if s.Coded != nil {
		sum := coder.Summarize(*s.Coded)
		b.WriteString("\n[자가진단 요약]\n")
		line("혼인", sum.MaritalStatus)
		line("미성년 자녀", sum.Children)
		line("소득", sum.Income)
		line("재산", sum.Assets)
		line("채무", sum.Debt)
	}
	return strings.TrimRight(b.String(), "\n")
}
