// Package scoring computes the eligibility and affordability estimate for a
// coded questionnaire. Score is a pure function: it never fails and clamps
// out-of-domain input instead of rejecting it.
package scoring

import (
	"math"

	"lead-intake/internal/models"
)

// All amounts are in 만원.
const (
	RecoveryMinDebt   = 1000
	RecoveryMaxDebt   = 150000
	BankruptcyMinDebt = 500

	LowIncomeThreshold      = 150
	HighIncomeThreshold     = 250
	RecoveryPreferredIncome = 100

	AffordableRatio = 0.8
	RepaymentRatio  = 0.2

	BaseRate       = 0.80
	NoIncomeRate   = 1.00
	LowIncomeRate  = 0.85
	HighIncomeRate = 0.70
	ChildrenBonus  = 0.05
	MinRate        = 0.20
	MaxRate        = 1.00

	HighBandPercentage    = 85
	AverageBandPercentage = 70

	maxChildren = 5
)

// Plan lengths in months.
const (
	ShortPlanMonths = 36
	LongPlanMonths  = 60
)

// basicLivingCost is the planned basic living cost per month by household size.
var basicLivingCost = map[int]float64{
	1: 134,
	2: 221,
	3: 282,
	4: 343,
}

// Score returns the EligibilityResult of c.
func Score(c models.CodedAnswers) models.EligibilityResult {
	c = clampInput(c)

	recovery := c.TotalDebt >= RecoveryMinDebt && c.TotalDebt <= RecoveryMaxDebt && c.MonthlyIncome > 0
	bankruptcy := c.TotalDebt >= BankruptcyMinDebt && (c.MonthlyIncome == 0 || c.MonthlyIncome < LowIncomeThreshold)

	return models.EligibilityResult{
		PersonalRecoveryEligible: recovery,
		BankruptcyEligible:       bankruptcy,
		Recommendation:           recommend(recovery, bankruptcy, c.MonthlyIncome),
		MonthlyPayment:           monthlyPayment(c),
		Reduction:                reduction(c),
	}
}

func clampInput(c models.CodedAnswers) models.CodedAnswers {
	if c.MonthlyIncome < 0 {
		c.MonthlyIncome = 0
	}
	if c.TotalDebt < 0 {
		c.TotalDebt = 0
	}
	if c.NumberOfChildren < 0 {
		c.NumberOfChildren = 0
	}
	if c.NumberOfChildren > maxChildren {
		c.NumberOfChildren = maxChildren
	}
	return c
}

func recommend(recovery, bankruptcy bool, income int) models.Recommendation {
	switch {
	case recovery && bankruptcy:
		if income > RecoveryPreferredIncome {
			return models.RecommendRecovery
		}
		return models.RecommendBankruptcy
	case recovery:
		return models.RecommendRecovery
	case bankruptcy:
		return models.RecommendBankruptcy
	default:
		return models.RecommendNone
	}
}

// HouseholdSize counts the applicant plus one dependant when minor children
// are declared. Marital status does not change it.
func HouseholdSize(c models.CodedAnswers) int {
	if c.HasMinorChildren {
		return 2
	}
	return 1
}

func monthlyPayment(c models.CodedAnswers) models.MonthlyPayment {
	cost := basicLivingCost[HouseholdSize(c)]
	affordable := math.Max(0, float64(c.MonthlyIncome)-cost) * AffordableRatio

	payment := func(months int) float64 {
		limit := float64(c.TotalDebt) * RepaymentRatio / float64(months)
		return math.Max(0, math.Min(affordable, limit))
	}

	return models.MonthlyPayment{
		Period36: payment(ShortPlanMonths),
		Period60: payment(LongPlanMonths),
	}
}

// Rate returns the modeled reduction rate for c, clamped to [MinRate, MaxRate].
func Rate(c models.CodedAnswers) float64 {
	c = clampInput(c)

	rate := BaseRate
	switch {
	case c.MonthlyIncome == 0:
		rate = NoIncomeRate
	case c.MonthlyIncome < LowIncomeThreshold:
		rate = LowIncomeRate
	case c.MonthlyIncome >= HighIncomeThreshold:
		rate = HighIncomeRate
	}
	if c.HasMinorChildren {
		rate += ChildrenBonus
	}

	return math.Min(MaxRate, math.Max(MinRate, rate))
}

func reduction(c models.CodedAnswers) models.Reduction {
	rate := Rate(c)
	current := float64(c.TotalDebt)
	reduced := current * (1 - rate)
	percentage := int(math.Round(rate * 100))

	return models.Reduction{
		CurrentDebt:    current,
		ReducedDebt:    reduced,
		Amount:         current - reduced,
		Percentage:     percentage,
		ComparisonBand: Band(percentage),
	}
}

// Band classifies a reduction percentage.
func Band(percentage int) models.ComparisonBand {
	switch {
	case percentage >= HighBandPercentage:
		return models.BandHigh
	case percentage >= AverageBandPercentage:
		return models.BandAverage
	default:
		return models.BandLow
	}
}
