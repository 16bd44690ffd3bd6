package scorediagnosis

import "lead-intake/internal/models"

type Input struct {
	Answers models.Answers `json:"answers"`
	Persist bool           `json:"persist"`
}

type Output struct {
	CodedAnswers models.CodedAnswers      `json:"codedAnswers"`
	Result       models.EligibilityResult `json:"result"`
	Defaulted    []string                 `json:"defaulted,omitempty"`
	RecordID     string                   `json:"recordId,omitempty"`
}
