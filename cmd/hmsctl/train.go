package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"smarthms/symptom"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the symptom model and save the artifact",
	Long: `Обучает TF-IDF + наивный Байес на наборе --data (создает его из встроенного
корпуса, если файла нет), сохраняет артефакт в --model и печатает точность на отложенной выборке`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd.OutOrStdout(), symptom.Config{
			ModelPath:    modelPath,
			DataPath:     dataPath,
			SkipArtifact: true,
			Logf:         func(string, ...interface{}) {},
		})
	},
}

func runTrain(out io.Writer, cfg symptom.Config) error {
	checker := symptom.New(cfg)
	status := checker.Status()
	for _, d := range status.Degradations {
		warnColor.Fprintf(out, "warning: %s\n", d)
	}
	if status.Mode != symptom.ModeTrained || status.Training == nil {
		return fmt.Errorf("training failed, classifier fell back to %s mode", status.Mode)
	}

	info := status.Training
	successColor.Fprintf(out, "Model trained on %d rows\n", info.TrainingRows)
	fmt.Fprintf(out, "Labels: %d, vocabulary: %d terms\n", len(status.Labels), status.Vocabulary)
	fmt.Fprintf(out, "Holdout accuracy: %.2f over %d rows\n", info.HoldoutAccuracy, info.HoldoutRows)
	if cfg.ModelPath != "" {
		fmt.Fprintf(out, "Artifact: %s\n", cfg.ModelPath)
	}
	return nil
}
