package coder

import "lead-intake/internal/models"

// Option labels as shown on the questionnaire.
const (
	OptionHasChildren = "있다"
	OptionNoChildren  = "없다"
	OptionNoAssets    = "없음"
)

type choice struct {
	label string
	code  int
}

// bracket is a range answer; [min, max) in 만원, max 0 means open-ended.
// mid is the coded value.
type bracket struct {
	label string
	min   int
	max   int
	mid   int
}

func (b bracket) contains(v int) bool {
	return v >= b.min && (b.max == 0 || v < b.max)
}

var maritalChoices = []choice{
	{"기혼", int(models.MaritalMarried)},
	{"미혼", int(models.MaritalSingle)},
	{"이혼/사별", int(models.MaritalDivorcedOrWidowed)},
}

var childCountChoices = []choice{
	{"1명", 1},
	{"2명", 2},
	{"3명", 3},
	{"4명", 4},
	{"5명 이상", 5},
}

var incomeTypeChoices = []choice{
	{"소득이 없다", int(models.IncomeNone)},
	{"급여소득", int(models.IncomeSalary)},
	{"영업소득", int(models.IncomeBusiness)},
	{"기타소득", int(models.IncomeOther)},
}

var incomeBrackets = []bracket{
	{"100만원 미만", 1, 100, 50},
	{"100만~200만원", 100, 200, 150},
	{"200만~300만원", 200, 300, 250},
	{"300만~500만원", 300, 500, 400},
	{"500만원 이상", 500, 0, 600},
}

var debtBrackets = []bracket{
	{"1천만원 미만", 1, 1000, 500},
	{"1천만~5천만원", 1000, 5000, 3000},
	{"5천만~1억원", 5000, 10000, 7500},
	{"1억~3억원", 10000, 30000, 20000},
	{"3억원 이상", 30000, 0, 40000},
}

var assetChoices = []struct {
	label string
	flag  models.AssetSet
}{
	{"부동산", models.AssetRealEstate},
	{"자동차", models.AssetVehicle},
	{"예금/적금", models.AssetDeposit},
	{"보험", models.AssetInsurance},
	{"주식/가상자산", models.AssetSecurities},
}

// Defaults applied when an answer is missing or unrecognized.
const (
	DefaultMaritalStatus = models.MaritalSingle
	DefaultIncomeType    = models.IncomeNone
	MaxChildren          = 5
)

func lookupChoice(choices []choice, label string) (int, bool) {
	for _, c := range choices {
		if c.label == label {
			return c.code, true
		}
	}
	return 0, false
}

func choiceLabel(choices []choice, code int) (string, bool) {
	for _, c := range choices {
		if c.code == code {
			return c.label, true
		}
	}
	return "", false
}

func lookupBracket(brackets []bracket, label string) (int, bool) {
	for _, b := range brackets {
		if b.label == label {
			return b.mid, true
		}
	}
	return 0, false
}

func bracketFor(brackets []bracket, v int) (bracket, bool) {
	for _, b := range brackets {
		if b.contains(v) {
			return b, true
		}
	}
	return bracket{}, false
}
