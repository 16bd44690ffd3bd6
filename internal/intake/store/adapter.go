package store

import (
	"encoding/json"
	"fmt"
	"time"

	"lead-intake/internal/diagnosis/coder"
	"lead-intake/internal/diagnosis/scoring"
	"lead-intake/internal/models"
)

// legacyRecord is the version-1 payload: contact fields at the top level and
// questionnaire data under testAnswers/debtInfo.
type legacyRecord struct {
	ID                 string                    `json:"id"`
	CreatedAt          time.Time                 `json:"createdAt"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
	CustomerName       string                    `json:"customerName"`
	Phone              string                    `json:"phone"`
	Residence          string                    `json:"residence"`
	ConsultationType   string                    `json:"consultationType"`
	ConsultationNumber string                    `json:"consultationNumber"`
	AcquisitionSource  models.AcquisitionSource  `json:"acquisitionSource"`
	TestAnswers        models.Answers            `json:"testAnswers"`
	CodedAnswers       *models.CodedAnswers      `json:"codedAnswers"`
	DebtInfo           *models.EligibilityResult `json:"debtInfo"`
	IsDuplicate        bool                      `json:"isDuplicate"`
	DuplicateCount     int                       `json:"duplicateCount"`
}

func decodePayload(version int, payload []byte) (*models.DiagnosisRecord, error) {
	switch {
	case version >= models.RecordSchemaVersion:
		var rec models.DiagnosisRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	case version == 1:
		var legacy legacyRecord
		if err := json.Unmarshal(payload, &legacy); err != nil {
			return nil, err
		}
		return upgradeV1(legacy), nil
	}
	return nil, fmt.Errorf("unsupported schema version %d", version)
}

// upgradeV1 maps a legacy payload onto the canonical shape. Missing coded
// answers or results are recomputed from the raw answers.
func upgradeV1(l legacyRecord) *models.DiagnosisRecord {
	rec := &models.DiagnosisRecord{
		ID:                 l.ID,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
		AcquisitionSource:  l.AcquisitionSource,
		ConsultationNumber: l.ConsultationNumber,
		Contact: models.Contact{
			Name:             l.CustomerName,
			Phone:            l.Phone,
			ConsultationType: l.ConsultationType,
			Residence:        l.Residence,
		},
		OriginalAnswers: l.TestAnswers,
		CodedAnswers:    l.CodedAnswers,
		Result:          l.DebtInfo,
		IsDuplicate:     l.IsDuplicate,
		DuplicateCount:  l.DuplicateCount,
	}

	if rec.AcquisitionSource == "" {
		rec.AcquisitionSource = models.SourceTest
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.DuplicateCount == 0 {
		rec.DuplicateCount = 1
	}

	if rec.CodedAnswers == nil && len(rec.OriginalAnswers) > 0 {
		coded := coder.Encode(rec.OriginalAnswers)
		rec.CodedAnswers = &coded
	}
	if rec.Result == nil && rec.CodedAnswers != nil {
		result := scoring.Score(*rec.CodedAnswers)
		rec.Result = &result
	}

	// v1 had no status; a number means the case reached the CRM.
	switch {
	case rec.AcquisitionSource.IsTest():
		rec.Status = models.StatusPending
	case rec.ConsultationNumber != "":
		rec.Status = models.StatusRegistered
	default:
		rec.Status = models.StatusPending
	}
	return rec
}
