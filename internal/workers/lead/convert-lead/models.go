package convertlead

import "lead-intake/internal/models"

type Input struct {
	RecordID string         `json:"recordId"`
	Contact  models.Contact `json:"contact"`
}

type Output struct {
	RecordID           string `json:"recordId"`
	ConsultationNumber string `json:"consultationNumber"`
	Registered         bool   `json:"registered"`
	AlreadyConverted   bool   `json:"alreadyConverted"`
	IsDuplicate        bool   `json:"isDuplicate"`
	DuplicateCount     int    `json:"duplicateCount"`
}
