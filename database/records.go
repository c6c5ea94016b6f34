package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidVitalSigns показатели не являются JSON объектом
var ErrInvalidVitalSigns = errors.New("vital_signs must be a JSON object")

const recordSelect = `SELECT m.id, m.patient_id, m.doctor_id, m.appointment_id,
	pu.first_name, pu.last_name, pu.username, du.first_name, du.last_name, du.username,
	m.diagnosis, m.symptoms, m.treatment_plan, m.vital_signs, m.created_at, m.updated_at
	FROM medical_records m
	JOIN patients p ON p.id = m.patient_id JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = m.doctor_id JOIN users du ON du.id = d.user_id`

func scanRecord(row rowScanner) (*MedicalRecord, error) {
	m := &MedicalRecord{}
	var appointmentID sql.NullInt64
	var vitals string
	var pf, pl, pn, df, dl, dn string
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &appointmentID, &pf, &pl, &pn, &df, &dl, &dn,
		&m.Diagnosis, &m.Symptoms, &m.TreatmentPlan, &vitals, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.AppointmentID = intPtr(appointmentID)
	m.PatientName = FullName(pf, pl, pn)
	m.DoctorName = FullName(df, dl, dn)
	m.VitalSigns = json.RawMessage(vitals)
	return m, nil
}

// MedicalRecordUpdate частичное обновление медицинской записи
type MedicalRecordUpdate struct {
	Diagnosis     *string         `json:"diagnosis"`
	Symptoms      *string         `json:"symptoms"`
	TreatmentPlan *string         `json:"treatment_plan"`
	VitalSigns    json.RawMessage `json:"vital_signs"`
}

// vitalSignsJSON нормализует показатели: пустое значение хранится как {}
func vitalSignsJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}", nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVitalSigns, err)
	}
	return string(raw), nil
}

// CreateMedicalRecord создает медицинскую запись
func (db *DB) CreateMedicalRecord(m *MedicalRecord) error {
	vitals, err := vitalSignsJSON(m.VitalSigns)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO medical_records (patient_id, doctor_id, appointment_id, diagnosis, symptoms,
			treatment_plan, vital_signs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.PatientID, m.DoctorID, nullableInt(m.AppointmentID), m.Diagnosis, m.Symptoms,
		m.TreatmentPlan, vitals, now, now)
	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := db.GetMedicalRecord(int(id))
	if err != nil {
		return err
	}
	*m = *created
	return nil
}

// GetMedicalRecord возвращает запись по ID
func (db *DB) GetMedicalRecord(id int) (*MedicalRecord, error) {
	m, err := scanRecord(db.conn.QueryRow(recordSelect+` WHERE m.id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

// GetMedicalRecordScoped возвращает запись, если она видна вызывающему
func (db *DB) GetMedicalRecordScoped(scope Scope, id int) (*MedicalRecord, error) {
	where, args := ownedFilter(scope)
	m, err := scanRecord(db.conn.QueryRow(recordSelect+` WHERE m.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

// ListMedicalRecords возвращает записи вызывающего, новые первыми
func (db *DB) ListMedicalRecords(scope Scope, limit int) ([]*MedicalRecord, error) {
	where, args := ownedFilter(scope)
	rows, err := db.conn.Query(recordSelect+` WHERE `+where+
		` ORDER BY m.created_at DESC, m.id DESC`+limitClause(limit), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query medical records: %w", err)
	}
	defer rows.Close()

	list := []*MedicalRecord{}
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medical record: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// UpdateMedicalRecord применяет частичное обновление
func (db *DB) UpdateMedicalRecord(id int, upd MedicalRecordUpdate) error {
	var set updateSet
	if upd.Diagnosis != nil {
		set.add("diagnosis", *upd.Diagnosis)
	}
	if upd.Symptoms != nil {
		set.add("symptoms", *upd.Symptoms)
	}
	if upd.TreatmentPlan != nil {
		set.add("treatment_plan", *upd.TreatmentPlan)
	}
	if len(upd.VitalSigns) > 0 {
		vitals, err := vitalSignsJSON(upd.VitalSigns)
		if err != nil {
			return err
		}
		set.add("vital_signs", vitals)
	}
	if set.empty() {
		return nil
	}
	set.add("updated_at", time.Now().UTC())
	return set.exec(db.conn, "medical_records", id)
}

// DeleteMedicalRecord удаляет запись
func (db *DB) DeleteMedicalRecord(id int) error {
	return deleteByID(db.conn, "medical_records", id)
}

// FirstMedicalRecordID ID самой ранней медкарты пациента у врача, nil если карт нет
func (db *DB) FirstMedicalRecordID(patientID, doctorID int) (*int, error) {
	return db.firstID(`SELECT id FROM medical_records WHERE patient_id = ? AND doctor_id = ? ORDER BY id LIMIT 1`,
		patientID, doctorID)
}
