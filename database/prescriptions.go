package database

import (
	"database/sql"
	"fmt"
	"time"
)

const prescriptionSelect = `SELECT r.id, r.patient_id, r.doctor_id, r.medical_record_id,
	pu.first_name, pu.last_name, pu.username, du.first_name, du.last_name, du.username,
	r.medication_name, r.dosage, r.frequency, r.duration, r.instructions, r.is_active, r.created_at
	FROM prescriptions r
	JOIN patients p ON p.id = r.patient_id JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = r.doctor_id JOIN users du ON du.id = d.user_id`

func scanPrescription(row rowScanner) (*Prescription, error) {
	r := &Prescription{}
	var recordID sql.NullInt64
	var pf, pl, pn, df, dl, dn string
	err := row.Scan(&r.ID, &r.PatientID, &r.DoctorID, &recordID, &pf, &pl, &pn, &df, &dl, &dn,
		&r.MedicationName, &r.Dosage, &r.Frequency, &r.Duration, &r.Instructions, &r.IsActive, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.MedicalRecordID = intPtr(recordID)
	r.PatientName = FullName(pf, pl, pn)
	r.DoctorName = FullName(df, dl, dn)
	return r, nil
}

// PrescriptionUpdate частичное обновление назначения
type PrescriptionUpdate struct {
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	Duration     *string `json:"duration"`
	Instructions *string `json:"instructions"`
	IsActive     *bool   `json:"is_active"`
}

// CreatePrescription создает назначение, новое назначение активно
func (db *DB) CreatePrescription(r *Prescription) error {
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO prescriptions (patient_id, doctor_id, medical_record_id, medication_name, dosage,
			frequency, duration, instructions, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		r.PatientID, r.DoctorID, nullableInt(r.MedicalRecordID), r.MedicationName, r.Dosage,
		r.Frequency, r.Duration, r.Instructions, now)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := db.GetPrescription(int(id))
	if err != nil {
		return err
	}
	*r = *created
	return nil
}

// GetPrescription возвращает назначение по ID
func (db *DB) GetPrescription(id int) (*Prescription, error) {
	r, err := scanPrescription(db.conn.QueryRow(prescriptionSelect+` WHERE r.id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

// GetPrescriptionScoped возвращает назначение, если оно видно вызывающему
func (db *DB) GetPrescriptionScoped(scope Scope, id int) (*Prescription, error) {
	where, args := ownedFilter(scope)
	r, err := scanPrescription(db.conn.QueryRow(prescriptionSelect+` WHERE r.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

// ListPrescriptions возвращает назначения вызывающего, новые первыми
func (db *DB) ListPrescriptions(scope Scope, activeOnly bool, limit int) ([]*Prescription, error) {
	where, args := ownedFilter(scope)
	if activeOnly {
		where += " AND r.is_active = 1"
	}
	rows, err := db.conn.Query(prescriptionSelect+` WHERE `+where+
		` ORDER BY r.created_at DESC, r.id DESC`+limitClause(limit), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescriptions: %w", err)
	}
	defer rows.Close()

	list := []*Prescription{}
	for rows.Next() {
		r, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// UpdatePrescription применяет частичное обновление
func (db *DB) UpdatePrescription(id int, upd PrescriptionUpdate) error {
	var set updateSet
	if upd.Dosage != nil {
		set.add("dosage", *upd.Dosage)
	}
	if upd.Frequency != nil {
		set.add("frequency", *upd.Frequency)
	}
	if upd.Duration != nil {
		set.add("duration", *upd.Duration)
	}
	if upd.Instructions != nil {
		set.add("instructions", *upd.Instructions)
	}
	if upd.IsActive != nil {
		set.add("is_active", *upd.IsActive)
	}
	return set.exec(db.conn, "prescriptions", id)
}

// DeletePrescription удаляет назначение
func (db *DB) DeletePrescription(id int) error {
	return deleteByID(db.conn, "prescriptions", id)
}
