package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"smarthms/symptom"
)

var (
	successColor   = color.New(color.FgGreen, color.Bold)
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed, color.Bold)
	conditionColor = color.New(color.FgCyan, color.Bold)
)

var predictFallback bool

func init() {
	predictCmd.Flags().BoolVar(&predictFallback, "fallback", false, "use the keyword table instead of the trained model")
}

var predictCmd = &cobra.Command{
	Use:   "predict <symptoms...>",
	Short: "Show the most likely conditions for the given symptoms",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checker := symptom.New(symptom.Config{
			ModelPath:       modelPath,
			DataPath:        dataPath,
			DisableTraining: predictFallback,
			Logf:            func(string, ...interface{}) {},
		})
		return runPredict(cmd.OutOrStdout(), checker, strings.Join(args, " "))
	},
}

func runPredict(out io.Writer, checker *symptom.Checker, symptoms string) error {
	if strings.TrimSpace(symptoms) == "" {
		return fmt.Errorf("symptoms are required")
	}
	prediction := checker.Predict(symptoms)

	fmt.Fprintf(out, "Classifier: %s\n", checker.Mode())
	for _, d := range checker.Degradations() {
		warnColor.Fprintf(out, "warning: %v\n", d)
	}
	for i, label := range prediction.Conditions {
		confidence := prediction.Confidence[label]
		fmt.Fprintf(out, "%d. %s %s\n", i+1,
			conditionColor.Sprint(symptom.DisplayName(label)),
			confidenceColor(confidence).Sprintf("%.0f%%", confidence*100))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, prediction.Recommendations)
	return nil
}

// confidenceColor цвет по уровню уверенности, как в тексте рекомендаций
func confidenceColor(confidence float64) *color.Color {
	switch symptom.ConfidenceBand(confidence) {
	case symptom.BandHigh:
		return color.New(color.FgGreen)
	case symptom.BandModerate:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
