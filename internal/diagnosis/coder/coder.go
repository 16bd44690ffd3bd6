// Package coder maps questionnaire answers to the coded form used by the
// scoring engine, and back.
//
// Encoding is total: an unrecognized option falls back to a documented default
// and is reported, never rejected. Range answers collapse to the midpoint of
// their bracket, so Decode returns an equivalent option rather than the
// original string.
package coder

import (
	"strings"

	"lead-intake/internal/models"
)

// Encode returns the coded projection of a.
func Encode(a models.Answers) models.CodedAnswers {
	coded, _ := EncodeReport(a)
	return coded
}

// EncodeReport is Encode plus the ids of answers that were present but not
// recognized and therefore replaced by their default.
func EncodeReport(a models.Answers) (models.CodedAnswers, []string) {
	var defaulted []string
	note := func(id string) {
		defaulted = append(defaulted, id)
	}

	coded := models.CodedAnswers{
		MaritalStatus: DefaultMaritalStatus,
		IncomeType:    DefaultIncomeType,
	}

	if label := strings.TrimSpace(a.Text(models.QuestionMaritalStatus)); label != "" {
		if code, ok := lookupChoice(maritalChoices, label); ok {
			coded.MaritalStatus = models.MaritalStatus(code)
		} else {
			note(models.QuestionMaritalStatus)
		}
	}

	switch label := strings.TrimSpace(a.Text(models.QuestionMinorChildren)); label {
	case OptionHasChildren:
		coded.HasMinorChildren = true
		sub := models.AdditionalKey(models.QuestionMinorChildren)
		if countLabel := strings.TrimSpace(a.Text(sub)); countLabel != "" {
			if n, ok := lookupChoice(childCountChoices, countLabel); ok {
				coded.NumberOfChildren = n
			} else {
				note(sub)
			}
		}
	case OptionNoChildren, "":
	default:
		note(models.QuestionMinorChildren)
	}

	if label := strings.TrimSpace(a.Text(models.QuestionIncomeType)); label != "" {
		if code, ok := lookupChoice(incomeTypeChoices, label); ok {
			coded.IncomeType = models.IncomeType(code)
		} else {
			note(models.QuestionIncomeType)
		}
	}

	if coded.IncomeType != models.IncomeNone {
		if label := strings.TrimSpace(a.Text(models.QuestionMonthlyIncome)); label != "" {
			if v, ok := lookupBracket(incomeBrackets, label); ok {
				coded.MonthlyIncome = v
			} else {
				note(models.QuestionMonthlyIncome)
			}
		}
	}

	assets, unknown := encodeAssets(a.List(models.QuestionAssets))
	coded.Assets = assets
	if unknown {
		note(models.QuestionAssets)
	}

	if label := strings.TrimSpace(a.Text(models.QuestionTotalDebt)); label != "" {
		if v, ok := lookupBracket(debtBrackets, label); ok {
			coded.TotalDebt = v
		} else {
			note(models.QuestionTotalDebt)
		}
	}

	return coded, defaulted
}

func encodeAssets(selected []string) (models.AssetSet, bool) {
	var set models.AssetSet
	unknown := false
	for _, label := range NormalizeAssets(selected) {
		if label == OptionNoAssets {
			continue
		}
		found := false
		for _, c := range assetChoices {
			if c.label == label {
				set |= c.flag
				found = true
				break
			}
		}
		if !found {
			unknown = true
		}
	}
	return set, unknown
}

// ToggleAsset applies one click on the assets question. "없음" is mutually
// exclusive with every other option.
func ToggleAsset(current []string, option string) []string {
	if option == OptionNoAssets {
		for _, c := range current {
			if c == OptionNoAssets {
				return []string{}
			}
		}
		return []string{OptionNoAssets}
	}

	out := make([]string, 0, len(current)+1)
	removed := false
	for _, c := range current {
		switch c {
		case OptionNoAssets:
			continue
		case option:
			removed = true
			continue
		}
		out = append(out, c)
	}
	if !removed {
		out = append(out, option)
	}
	return out
}

// NormalizeAssets replays a selection list through ToggleAsset so that the
// exclusivity rule holds for submissions that did not come from the UI.
func NormalizeAssets(selected []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = ToggleAsset(out, s)
	}
	return out
}

// Decode returns representative answers for c. Encode(Decode(c)) == c for any
// c produced by Encode.
func Decode(c models.CodedAnswers) models.Answers {
	a := models.Answers{}

	if label, ok := choiceLabel(maritalChoices, int(c.MaritalStatus)); ok {
		a[models.QuestionMaritalStatus] = models.Text(label)
	}

	if c.HasMinorChildren {
		a[models.QuestionMinorChildren] = models.Text(OptionHasChildren)
		if c.NumberOfChildren > 0 {
			n := c.NumberOfChildren
			if n > MaxChildren {
				n = MaxChildren
			}
			label, _ := choiceLabel(childCountChoices, n)
			a[models.AdditionalKey(models.QuestionMinorChildren)] = models.Text(label)
		}
	} else {
		a[models.QuestionMinorChildren] = models.Text(OptionNoChildren)
	}

	if label, ok := choiceLabel(incomeTypeChoices, int(c.IncomeType)); ok {
		a[models.QuestionIncomeType] = models.Text(label)
	}
	if c.IncomeType != models.IncomeNone {
		if b, ok := bracketFor(incomeBrackets, c.MonthlyIncome); ok {
			a[models.QuestionMonthlyIncome] = models.Text(b.label)
		}
	}

	a[models.QuestionAssets] = models.List(AssetLabels(c.Assets)...)

	if b, ok := bracketFor(debtBrackets, c.TotalDebt); ok {
		a[models.QuestionTotalDebt] = models.Text(b.label)
	}

	return a
}

// AssetLabels returns the option labels of set, or "없음" when empty.
func AssetLabels(set models.AssetSet) []string {
	var labels []string
	for _, c := range assetChoices {
		if set.Has(c.flag) {
			labels = append(labels, c.label)
		}
	}
	if len(labels) == 0 {
		return []string{OptionNoAssets}
	}
	return labels
}
