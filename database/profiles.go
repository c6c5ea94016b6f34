package database

import (
	"database/sql"
	"fmt"
)

// Профили ролей: пациенты, врачи, администраторы. Все выборки соединены с users.

const patientColumns = `pt.id, pt.emergency_contact, pt.emergency_phone, pt.blood_type,
	pt.allergies, pt.medical_insurance, ` + userColumns

func scanPatient(row rowScanner) (*Patient, error) {
	p := &Patient{User: &User{}}
	u := p.User
	var dob sql.NullString
	err := row.Scan(&p.ID, &p.EmergencyContact, &p.EmergencyPhone, &p.BloodType,
		&p.Allergies, &p.MedicalInsurance,
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.PhoneNumber, &u.Address, &dob, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.DateOfBirth = ptrString(dob)
	return p, nil
}

// PatientUpdate частичное обновление профиля пациента
type PatientUpdate struct {
	EmergencyContact *string `json:"emergency_contact"`
	EmergencyPhone   *string `json:"emergency_phone"`
	BloodType        *string `json:"blood_type"`
	Allergies        *string `json:"allergies"`
	MedicalInsurance *string `json:"medical_insurance"`
}

// CreatePatient создает профиль пациента для существующего пользователя
func (db *DB) CreatePatient(userID int, p *Patient) error {
	res, err := db.conn.Exec(`
		INSERT INTO patients (user_id, emergency_contact, emergency_phone, blood_type, allergies, medical_insurance)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, p.EmergencyContact, p.EmergencyPhone, p.BloodType, p.Allergies, p.MedicalInsurance)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = int(id)
	if p.User, err = db.GetUser(userID); err != nil {
		return err
	}
	return nil
}

// GetPatient возвращает пациента по ID профиля
func (db *DB) GetPatient(id int) (*Patient, error) {
	p, err := scanPatient(db.conn.QueryRow(`SELECT `+patientColumns+`
		FROM patients pt JOIN users u ON u.id = pt.user_id WHERE pt.id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// GetPatientByUserID возвращает профиль пациента пользователя
func (db *DB) GetPatientByUserID(userID int) (*Patient, error) {
	p, err := scanPatient(db.conn.QueryRow(`SELECT `+patientColumns+`
		FROM patients pt JOIN users u ON u.id = pt.user_id WHERE pt.user_id = ?`, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// ListPatients возвращает пациентов, видимых вызывающему
func (db *DB) ListPatients(scope Scope, limit int) ([]*Patient, error) {
	where, args := patientsFilter(scope)
	query := `SELECT ` + patientColumns + ` FROM patients pt JOIN users u ON u.id = pt.user_id
		WHERE ` + where + ` ORDER BY pt.id` + limitClause(limit)
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// GetPatientScoped возвращает пациента, если он виден вызывающему
func (db *DB) GetPatientScoped(scope Scope, id int) (*Patient, error) {
	where, args := patientsFilter(scope)
	p, err := scanPatient(db.conn.QueryRow(`SELECT `+patientColumns+`
		FROM patients pt JOIN users u ON u.id = pt.user_id WHERE pt.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// UpdatePatient применяет частичное обновление
func (db *DB) UpdatePatient(id int, upd PatientUpdate) error {
	var set updateSet
	if upd.EmergencyContact != nil {
		set.add("emergency_contact", *upd.EmergencyContact)
	}
	if upd.EmergencyPhone != nil {
		set.add("emergency_phone", *upd.EmergencyPhone)
	}
	if upd.BloodType != nil {
		set.add("blood_type", *upd.BloodType)
	}
	if upd.Allergies != nil {
		set.add("allergies", *upd.Allergies)
	}
	if upd.MedicalInsurance != nil {
		set.add("medical_insurance", *upd.MedicalInsurance)
	}
	return set.exec(db.conn, "patients", id)
}

// DeletePatient удаляет профиль пациента
func (db *DB) DeletePatient(id int) error {
	return deleteByID(db.conn, "patients", id)
}

const doctorColumns = `d.id, d.specialization, d.license_number, d.experience_years,
	d.consultation_fee, d.is_available, ` + userColumns

func scanDoctor(row rowScanner) (*Doctor, error) {
	d := &Doctor{User: &User{}}
	u := d.User
	var dob sql.NullString
	err := row.Scan(&d.ID, &d.Specialization, &d.LicenseNumber, &d.ExperienceYears,
		&d.ConsultationFee, &d.IsAvailable,
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.PhoneNumber, &u.Address, &dob, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.DateOfBirth = ptrString(dob)
	return d, nil
}

// DoctorUpdate частичное обновление профиля врача
type DoctorUpdate struct {
	Specialization  *string  `json:"specialization"`
	ExperienceYears *int     `json:"experience_years"`
	ConsultationFee *float64 `json:"consultation_fee"`
	IsAvailable     *bool    `json:"is_available"`
}

// CreateDoctor создает профиль врача для существующего пользователя
func (db *DB) CreateDoctor(userID int, d *Doctor) error {
	if d.Specialization == "" {
		d.Specialization = "general"
	}
	if !ValidSpecialization(d.Specialization) {
		return fmt.Errorf("invalid specialization %q", d.Specialization)
	}
	res, err := db.conn.Exec(`
		INSERT INTO doctors (user_id, specialization, license_number, experience_years, consultation_fee, is_available)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, d.Specialization, d.LicenseNumber, d.ExperienceYears, d.ConsultationFee, d.IsAvailable)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = int(id)
	if d.User, err = db.GetUser(userID); err != nil {
		return err
	}
	return nil
}

// GetDoctor возвращает врача по ID профиля
func (db *DB) GetDoctor(id int) (*Doctor, error) {
	d, err := scanDoctor(db.conn.QueryRow(`SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id WHERE d.id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

// GetDoctorByUserID возвращает профиль врача пользователя
func (db *DB) GetDoctorByUserID(userID int) (*Doctor, error) {
	d, err := scanDoctor(db.conn.QueryRow(`SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id WHERE d.user_id = ?`, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

// ListDoctors возвращает врачей, видимых вызывающему
func (db *DB) ListDoctors(scope Scope) ([]*Doctor, error) {
	where, args := doctorsFilter(scope)
	rows, err := db.conn.Query(`SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id WHERE `+where+` ORDER BY d.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer rows.Close()

	doctors := []*Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// GetDoctorScoped возвращает врача, если он виден вызывающему
func (db *DB) GetDoctorScoped(scope Scope, id int) (*Doctor, error) {
	where, args := doctorsFilter(scope)
	d, err := scanDoctor(db.conn.QueryRow(`SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id WHERE d.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

// UpdateDoctor применяет частичное обновление
func (db *DB) UpdateDoctor(id int, upd DoctorUpdate) error {
	var set updateSet
	if upd.Specialization != nil {
		if !ValidSpecialization(*upd.Specialization) {
			return fmt.Errorf("invalid specialization %q", *upd.Specialization)
		}
		set.add("specialization", *upd.Specialization)
	}
	if upd.ExperienceYears != nil {
		set.add("experience_years", *upd.ExperienceYears)
	}
	if upd.ConsultationFee != nil {
		set.add("consultation_fee", *upd.ConsultationFee)
	}
	if upd.IsAvailable != nil {
		set.add("is_available", *upd.IsAvailable)
	}
	return set.exec(db.conn, "doctors", id)
}

// DeleteDoctor удаляет профиль врача
func (db *DB) DeleteDoctor(id int) error {
	return deleteByID(db.conn, "doctors", id)
}

const adminColumns = `ad.id, ad.department, ad.employee_id, ` + userColumns

func scanAdmin(row rowScanner) (*Admin, error) {
	a := &Admin{User: &User{}}
	u := a.User
	var dob sql.NullString
	err := row.Scan(&a.ID, &a.Department, &a.EmployeeID,
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.PhoneNumber, &u.Address, &dob, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.DateOfBirth = ptrString(dob)
	return a, nil
}

// AdminUpdate частичное обновление профиля администратора
type AdminUpdate struct {
	Department *string `json:"department"`
}

// CreateAdmin создает профиль администратора для существующего пользователя
func (db *DB) CreateAdmin(userID int, a *Admin) error {
	res, err := db.conn.Exec(`INSERT INTO admins (user_id, department, employee_id) VALUES (?, ?, ?)`,
		userID, a.Department, a.EmployeeID)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = int(id)
	if a.User, err = db.GetUser(userID); err != nil {
		return err
	}
	return nil
}

// ListAdmins возвращает администраторов, видимых вызывающему
func (db *DB) ListAdmins(scope Scope) ([]*Admin, error) {
	where, args := adminsFilter(scope)
	rows, err := db.conn.Query(`SELECT `+adminColumns+`
		FROM admins ad JOIN users u ON u.id = ad.user_id WHERE `+where+` ORDER BY ad.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	admins := []*Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// GetAdminScoped возвращает администратора, если он виден вызывающему
func (db *DB) GetAdminScoped(scope Scope, id int) (*Admin, error) {
	where, args := adminsFilter(scope)
	a, err := scanAdmin(db.conn.QueryRow(`SELECT `+adminColumns+`
		FROM admins ad JOIN users u ON u.id = ad.user_id WHERE ad.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// UpdateAdmin применяет частичное обновление
func (db *DB) UpdateAdmin(id int, upd AdminUpdate) error {
	var set updateSet
	if upd.Department != nil {
		set.add("department", *upd.Department)
	}
	return set.exec(db.conn, "admins", id)
}

// DeleteAdmin удаляет профиль администратора
func (db *DB) DeleteAdmin(id int) error {
	return deleteByID(db.conn, "admins", id)
}

// CountDoctors общее число врачей
func (db *DB) CountDoctors() (int, error) {
	return db.count(`SELECT COUNT(*) FROM doctors`)
}

// CountPatients общее число пациентов
func (db *DB) CountPatients() (int, error) {
	return db.count(`SELECT COUNT(*) FROM patients`)
}
