// internal/models/diagnosis.go
package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Question ids of the questionnaire.
const (
	QuestionMaritalStatus = "1"
	QuestionMinorChildren = "2"
	QuestionIncomeType    = "3"
	QuestionMonthlyIncome = "4"
	QuestionAssets        = "5"
	QuestionTotalDebt     = "6"
)

// AdditionalKey returns the sub-answer key of a question, e.g. "2_additional".
func AdditionalKey(questionID string) string {
	return questionID + "_additional"
}

// AnswerValue is either a single option or a list of options.
type AnswerValue struct {
	Single  string
	Multi   []string
	IsMulti bool
}

func Text(s string) AnswerValue {
	return AnswerValue{Single: s}
}

func List(items ...string) AnswerValue {
	if items == nil {
		items = []string{}
	}
	return AnswerValue{Multi: items, IsMulti: true}
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsMulti {
		items := v.Multi
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.Single)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = AnswerValue{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("answer must be a string or a list of strings: %w", err)
	}
	*v = List(items...)
	return nil
}

// Answers is the raw questionnaire submission keyed by question id.
type Answers map[string]AnswerValue

func (a Answers) Text(id string) string {
	v, ok := a[id]
	if !ok {
		return ""
	}
	if v.IsMulti {
		if len(v.Multi) > 0 {
			return v.Multi[0]
		}
		return ""
	}
	return v.Single
}

func (a Answers) List(id string) []string {
	v, ok := a[id]
	if !ok {
		return nil
	}
	if v.IsMulti {
		return v.Multi
	}
	if v.Single == "" {
		return nil
	}
	return []string{v.Single}
}

type MaritalStatus int

const (
	MaritalMarried MaritalStatus = iota + 1
	MaritalSingle
	MaritalDivorcedOrWidowed
)

type IncomeType int

const (
	IncomeNone IncomeType = iota + 1
	IncomeSalary
	IncomeBusiness
	IncomeOther
)

// AssetSet is a flag-set of declared assets. Informational only.
type AssetSet uint8

const (
	AssetRealEstate AssetSet = 1 << iota
	AssetVehicle
	AssetDeposit
	AssetInsurance
	AssetSecurities
)

var assetNames = map[AssetSet]string{
	AssetRealEstate: "realEstate",
	AssetVehicle:    "vehicle",
	AssetDeposit:    "deposit",
	AssetInsurance:  "insurance",
	AssetSecurities: "securities",
}

// AllAssets lists the flags in display order.
func AllAssets() []AssetSet {
	return []AssetSet{AssetRealEstate, AssetVehicle, AssetDeposit, AssetInsurance, AssetSecurities}
}

func (s AssetSet) Has(flag AssetSet) bool {
	return s&flag != 0
}

func (s AssetSet) Flags() []AssetSet {
	var out []AssetSet
	for _, f := range AllAssets() {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s AssetSet) MarshalJSON() ([]byte, error) {
	names := []string{}
	for _, f := range s.Flags() {
		names = append(names, assetNames[f])
	}
	return json.Marshal(names)
}

func (s *AssetSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out AssetSet
	for _, n := range names {
		for flag, name := range assetNames {
			if name == n {
				out |= flag
			}
		}
	}
	*s = out
	return nil
}

// CodedAnswers is the numeric projection of Answers. Amounts are in 만원.
type CodedAnswers struct {
	MaritalStatus    MaritalStatus `json:"maritalStatus"`
	HasMinorChildren bool          `json:"hasMinorChildren"`
	NumberOfChildren int           `json:"numberOfChildren"`
	IncomeType       IncomeType    `json:"incomeType"`
	MonthlyIncome    int           `json:"monthlyIncome"`
	Assets           AssetSet      `json:"assets"`
	TotalDebt        int           `json:"totalDebt"`
}

type Recommendation string

const (
	RecommendRecovery   Recommendation = "recovery"
	RecommendBankruptcy Recommendation = "bankruptcy"
	RecommendBoth       Recommendation = "both"
	RecommendNone       Recommendation = "none"
)

type ComparisonBand string

const (
	BandLow     ComparisonBand = "low"
	BandAverage ComparisonBand = "average"
	BandHigh    ComparisonBand = "high"
)

type MonthlyPayment struct {
	Period36 float64 `json:"period36"`
	Period60 float64 `json:"period60"`
}

type Reduction struct {
	CurrentDebt    float64        `json:"currentDebt"`
	ReducedDebt    float64        `json:"reducedDebt"`
	Amount         float64        `json:"amount"`
	Percentage     int            `json:"percentage"`
	ComparisonBand ComparisonBand `json:"comparison"`
}

type EligibilityResult struct {
	PersonalRecoveryEligible bool           `json:"personalRecoveryEligible"`
	BankruptcyEligible       bool           `json:"bankruptcyEligible"`
	Recommendation           Recommendation `json:"recommendation"`
	MonthlyPayment           MonthlyPayment `json:"monthlyPayment"`
	Reduction                Reduction      `json:"reduction"`
}

// SortedKeys returns the question ids of a in a stable order.
func (a Answers) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
