package submitdirect

import "lead-intake/internal/models"

type Input struct {
	Channel models.Channel `json:"channel"`
	Contact models.Contact `json:"contact"`
	Answers models.Answers `json:"answers"`
}

type Output struct {
	RecordID           string `json:"recordId"`
	ConsultationNumber string `json:"consultationNumber"`
	Registered         bool   `json:"registered"`
	IsDuplicate        bool   `json:"isDuplicate"`
	DuplicateCount     int    `json:"duplicateCount"`
}
