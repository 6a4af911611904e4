package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/mtsoor/pkg/exitcodes"
	"github.com/ethpandaops/mtsoor/pkg/testplan"
)

var (
	validatePlanFile  string
	validateTestCases []string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an XML test plan without launching the engine",
	Long: `Parse the XML test plan, print the declared test cases, and optionally
check that a requested selection is declared.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validatePlanFile, "plan", "",
		"Path to the XML test plan (required)")
	validateCmd.Flags().StringSliceVar(&validateTestCases, "testcases", nil,
		"Test case selection to check against the plan")

	_ = validateCmd.MarkFlagRequired("plan")
}

func runValidate(cmd *cobra.Command, args []string) error {
	code, err := executeValidate()
	if err != nil {
		return err
	}

	if code != exitcodes.Success {
		os.Exit(code)
	}

	return nil
}

func executeValidate() (int, error) {
	def, err := testplan.Parse(validatePlanFile)
	if err != nil {
		return 0, err
	}

	names := def.CaseNames()
	if len(names) == 0 {
		log.WithField("plan", validatePlanFile).
			Warn("No test case declared in the plan")

		return exitcodes.RunError, nil
	}

	fmt.Printf("Test cases declared in %s (%d):\n", validatePlanFile, len(names))

	for _, name := range names {
		fmt.Printf("  - %s\n", name)
	}

	if len(validateTestCases) > 0 {
		if err := testplan.ValidateSubset(names, validateTestCases); err != nil {
			for _, name := range testplan.MissingCases(names, validateTestCases) {
				log.WithField("case", name).
					Error("Test case not declared in the plan")
			}

			return exitcodes.RunError, nil
		}

		log.WithField("count", len(validateTestCases)).
			Info("Selection is declared in the plan")
	}

	return exitcodes.Success, nil
}
