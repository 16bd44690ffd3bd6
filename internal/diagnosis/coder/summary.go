package coder

import (
	"fmt"
	"strings"

	"lead-intake/internal/models"
)

// Summary is the human-readable questionnaire digest embedded in CRM memos.
type Summary struct {
	MaritalStatus string
	Children      string
	Income        string
	Assets        string
	Debt          string
}

const unanswered = "미응답"

func Summarize(c models.CodedAnswers) Summary {
	s := Summary{
		MaritalStatus: unanswered,
		Children:      "없음",
		Income:        "소득 없음",
		Assets:        strings.Join(AssetLabels(c.Assets), ", "),
		Debt:          unanswered,
	}

	if label, ok := choiceLabel(maritalChoices, int(c.MaritalStatus)); ok {
		s.MaritalStatus = label
	}

	if c.HasMinorChildren {
		switch {
		case c.NumberOfChildren >= MaxChildren:
			s.Children = "5명 이상"
		case c.NumberOfChildren > 0:
			s.Children = fmt.Sprintf("%d명", c.NumberOfChildren)
		default:
			s.Children = "있음"
		}
	}

	if c.MonthlyIncome > 0 {
		if b, ok := bracketFor(incomeBrackets, c.MonthlyIncome); ok {
			s.Income = b.label
		}
		if label, ok := choiceLabel(incomeTypeChoices, int(c.IncomeType)); ok && c.IncomeType != models.IncomeNone {
			s.Income = label + " / " + s.Income
		}
	}

	if b, ok := bracketFor(debtBrackets, c.TotalDebt); ok {
		s.Debt = b.label
	}

	return s
}
