package database

import (
	"fmt"
	"time"
)

const appointmentSelect = `SELECT a.id, a.patient_id, a.doctor_id,
	pu.first_name, pu.last_name, pu.username, du.first_name, du.last_name, du.username,
	a.appointment_date, a.status, a.reason, a.notes, a.created_at, a.updated_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = a.doctor_id JOIN users du ON du.id = d.user_id`

func scanAppointment(row rowScanner) (*Appointment, error) {
	a := &Appointment{}
	var pf, pl, pn, df, dl, dn string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &pf, &pl, &pn, &df, &dl, &dn,
		&a.AppointmentDate, &a.Status, &a.Reason, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.PatientName = FullName(pf, pl, pn)
	a.DoctorName = FullName(df, dl, dn)
	return a, nil
}

// AppointmentUpdate частичное обновление записи на прием
type AppointmentUpdate struct {
	AppointmentDate *time.Time `json:"appointment_date"`
	Status          *string    `json:"status"`
	Reason          *string    `json:"reason"`
	Notes           *string    `json:"notes"`
}

// CreateAppointment создает запись на прием
func (db *DB) CreateAppointment(a *Appointment) error {
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !ValidAppointmentStatus(a.Status) {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO appointments (patient_id, doctor_id, appointment_date, status, reason, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PatientID, a.DoctorID, a.AppointmentDate.UTC(), a.Status, a.Reason, a.Notes, now, now)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := db.GetAppointment(int(id))
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// GetAppointment возвращает запись по ID
func (db *DB) GetAppointment(id int) (*Appointment, error) {
	a, err := scanAppointment(db.conn.QueryRow(appointmentSelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// GetAppointmentScoped возвращает запись, если она видна вызывающему
func (db *DB) GetAppointmentScoped(scope Scope, id int) (*Appointment, error) {
	where, args := ownedFilter(scope)
	a, err := scanAppointment(db.conn.QueryRow(appointmentSelect+` WHERE a.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// ListAppointments возвращает записи вызывающего, новые даты первыми
func (db *DB) ListAppointments(scope Scope, limit int) ([]*Appointment, error) {
	where, args := ownedFilter(scope)
	rows, err := db.conn.Query(appointmentSelect+` WHERE `+where+
		` ORDER BY a.appointment_date DESC, a.id DESC`+limitClause(limit), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	list := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpdateAppointment применяет частичное обновление
func (db *DB) UpdateAppointment(id int, upd AppointmentUpdate) error {
	var set updateSet
	if upd.AppointmentDate != nil {
		set.add("appointment_date", upd.AppointmentDate.UTC())
	}
	if upd.Status != nil {
		if !ValidAppointmentStatus(*upd.Status) {
			return fmt.Errorf("invalid status %q", *upd.Status)
		}
		set.add("status", *upd.Status)
	}
	if upd.Reason != nil {
		set.add("reason", *upd.Reason)
	}
	if upd.Notes != nil {
		set.add("notes", *upd.Notes)
	}
	if set.empty() {
		return nil
	}
	set.add("updated_at", time.Now().UTC())
	return set.exec(db.conn, "appointments", id)
}

// SetAppointmentStatus меняет статус записи
func (db *DB) SetAppointmentStatus(id int, status string) error {
	return db.UpdateAppointment(id, AppointmentUpdate{Status: &status})
}

// DeleteAppointment удаляет запись
func (db *DB) DeleteAppointment(id int) error {
	return deleteByID(db.conn, "appointments", id)
}

// CountAppointments общее число записей
func (db *DB) CountAppointments() (int, error) {
	return db.count(`SELECT COUNT(*) FROM appointments`)
}

// FirstAppointmentID ID самой ранней записи пациента к врачу, nil если записей нет
func (db *DB) FirstAppointmentID(patientID, doctorID int) (*int, error) {
	return db.firstID(`SELECT id FROM appointments WHERE patient_id = ? AND doctor_id = ? ORDER BY id LIMIT 1`,
		patientID, doctorID)
}
