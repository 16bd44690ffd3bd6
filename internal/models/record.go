// internal/models/record.go
package models

import "time"

// RecordSchemaVersion is the version of the canonical DiagnosisRecord shape
// written by this service. Older payloads are upgraded at the storage boundary.
const RecordSchemaVersion = 2

// PlaceholderName is the contact name of a questionnaire record that has not
// been converted yet.
const PlaceholderName = "진단고객"

// LocalNumberSuffix marks a consultation number taken from the local scan
// while the remote counter was unreachable. Counter numbers never carry it.
const LocalNumberSuffix = "-L"

type Contact struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	ConsultationType string `json:"consultationType"`
	Residence        string `json:"residence"`
}

// DiagnosisRecord is one submission. It is created once and afterwards only
// mutated by the conversion flow.
type DiagnosisRecord struct {
	ID                 string             `json:"id"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	Status             RecordStatus       `json:"status"`
	AcquisitionSource  AcquisitionSource  `json:"acquisitionSource"`
	ConsultationNumber string             `json:"consultationNumber,omitempty"`
	Contact            Contact            `json:"contact"`
	OriginalAnswers    Answers            `json:"originalAnswers,omitempty"`
	CodedAnswers       *CodedAnswers      `json:"codedAnswers,omitempty"`
	Result             *EligibilityResult `json:"result,omitempty"`
	IsDuplicate        bool               `json:"isDuplicate"`
	DuplicateCount     int                `json:"duplicateCount"`
}

// FromQuestionnaire reports whether the record carries questionnaire data.
func (r *DiagnosisRecord) FromQuestionnaire() bool {
	return r.CodedAnswers != nil
}

// RecordUpdate is the mutation applied by a conversion.
type RecordUpdate struct {
	Contact            Contact
	AcquisitionSource  AcquisitionSource
	ConsultationNumber string
	Status             RecordStatus
	IsDuplicate        bool
	DuplicateCount     int
}

// Apply mutates r in place. Callers have already checked the transition.
func (u RecordUpdate) Apply(r *DiagnosisRecord, now time.Time) {
	r.Contact = u.Contact
	r.AcquisitionSource = u.AcquisitionSource
	if u.ConsultationNumber != "" {
		r.ConsultationNumber = u.ConsultationNumber
	}
	if u.Status != "" {
		r.Status = u.Status
	}
	r.IsDuplicate = u.IsDuplicate
	r.DuplicateCount = u.DuplicateCount
	r.UpdatedAt = now
}
