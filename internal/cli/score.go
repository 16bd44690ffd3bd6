package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lead-intake/internal/diagnosis/coder"
	"lead-intake/internal/diagnosis/scoring"
	"lead-intake/internal/models"
)

type scoreOutput struct {
	Coded     models.CodedAnswers      `json:"codedAnswers"`
	Result    models.EligibilityResult `json:"result"`
	Defaulted []string                 `json:"defaulted,omitempty"`
}

// NewScoreCommand scores a questionnaire offline. Nothing is stored.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score [answers.json]",
		Short: "Code and score questionnaire answers",
		Long: `Reads an answers object keyed by question id (a file, or stdin when
the argument is omitted or "-") and prints the coded answers and the
eligibility result.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runScore(rootOpts, in, cmd.OutOrStdout())
		},
	}
}

func runScore(opts *RootOptions, in io.Reader, out io.Writer) error {
	var answers models.Answers
	if err := json.NewDecoder(in).Decode(&answers); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}

	coded, defaulted := coder.EncodeReport(answers)
	res := scoreOutput{Coded: coded, Result: scoring.Score(coded), Defaulted: defaulted}

	return write(out, opts.Format, res, func(w io.Writer) error {
		line(w, "Answers")
		for _, id := range answers.SortedKeys() {
			line(w, "  %s: %s", id, strings.Join(answers.List(id), ", "))
		}
		if len(defaulted) > 0 {
			line(w, "Defaulted: %s", strings.Join(defaulted, ", "))
		}
		r := res.Result
		line(w, "Personal recovery eligible: %t", r.PersonalRecoveryEligible)
		line(w, "Bankruptcy eligible:        %t", r.BankruptcyEligible)
		line(w, "Recommendation:             %s", r.Recommendation)
		line(w, "Monthly payment (36/60):    %.0f / %.0f", r.MonthlyPayment.Period36, r.MonthlyPayment.Period60)
		line(w, "Reduction:                  %d%% (%s)", r.Reduction.Percentage, r.Reduction.ComparisonBand)
		return nil
	})
}
