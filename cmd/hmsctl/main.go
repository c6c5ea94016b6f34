package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smarthms/database"
)

var rootCmd = &cobra.Command{
	Use:           "hmsctl",
	Short:         "Smart HMS maintenance tool",
	Long:          `hmsctl заполняет базу демонстрационными данными и управляет моделью проверки симптомов`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	dbPath    string
	modelPath string
	dataPath  string
)

func main() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("DATABASE_PATH", "hms.db"), "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", envOr("SYMPTOM_MODEL_PATH", "symptom_model.mp"), "path to the symptom model artifact")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", envOr("SYMPTOM_DATA_PATH", "symptom_data.csv"), "path to the symptom training dataset")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openDB() (*database.DB, error) {
	db, err := database.NewDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return db, nil
}
