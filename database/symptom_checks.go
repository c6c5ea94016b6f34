package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const symptomCheckColumns = `sc.id, sc.patient_id, sc.symptoms, sc.predicted_conditions,
	sc.confidence_scores, sc.recommendations, sc.created_at`

func scanSymptomCheck(row rowScanner) (*SymptomCheck, error) {
	c := &SymptomCheck{}
	var patientID sql.NullInt64
	var conditions, scores string
	if err := row.Scan(&c.ID, &patientID, &c.Symptoms, &conditions, &scores, &c.Recommendations, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.PatientID = intPtr(patientID)
	if err := json.Unmarshal([]byte(conditions), &c.PredictedConditions); err != nil {
		return nil, fmt.Errorf("invalid predicted_conditions for check %d: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(scores), &c.ConfidenceScores); err != nil {
		return nil, fmt.Errorf("invalid confidence_scores for check %d: %w", c.ID, err)
	}
	return c, nil
}

// CreateSymptomCheck сохраняет результат проверки симптомов
func (db *DB) CreateSymptomCheck(c *SymptomCheck) error {
	if c.PredictedConditions == nil {
		c.PredictedConditions = []string{}
	}
	if c.ConfidenceScores == nil {
		c.ConfidenceScores = map[string]float64{}
	}
	conditions, err := json.Marshal(c.PredictedConditions)
	if err != nil {
		return err
	}
	scores, err := json.Marshal(c.ConfidenceScores)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO symptom_checks (patient_id, symptoms, predicted_conditions, confidence_scores, recommendations, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullableInt(c.PatientID), c.Symptoms, string(conditions), string(scores), c.Recommendations, now)
	if err != nil {
		return fmt.Errorf("failed to create symptom check: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = int(id)
	c.CreatedAt = now
	return nil
}

// ListSymptomChecks возвращает проверки, видимые вызывающему, новые первыми
func (db *DB) ListSymptomChecks(scope Scope) ([]*SymptomCheck, error) {
	where, args := symptomChecksFilter(scope)
	rows, err := db.conn.Query(`SELECT `+symptomCheckColumns+` FROM symptom_checks sc
		WHERE `+where+` ORDER BY sc.created_at DESC, sc.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symptom checks: %w", err)
	}
	defer rows.Close()

	list := []*SymptomCheck{}
	for rows.Next() {
		c, err := scanSymptomCheck(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetSymptomCheckScoped возвращает проверку, если она видна вызывающему
func (db *DB) GetSymptomCheckScoped(scope Scope, id int) (*SymptomCheck, error) {
	where, args := symptomChecksFilter(scope)
	c, err := scanSymptomCheck(db.conn.QueryRow(`SELECT `+symptomCheckColumns+` FROM symptom_checks sc
		WHERE sc.id = ? AND `+where, append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}
