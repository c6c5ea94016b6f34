package database

import (
	"database/sql"
	"fmt"
)

// InitSchema создает все необходимые таблицы в SQLite базе данных
func InitSchema(db *sql.DB) error {
	schema := `
	-- Пользователи
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'patient' CHECK (role IN ('patient', 'doctor', 'admin')),
		phone_number TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Профили пациентов
	CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER UNIQUE NOT NULL,
		emergency_contact TEXT NOT NULL DEFAULT '',
		emergency_phone TEXT NOT NULL DEFAULT '',
		blood_type TEXT NOT NULL DEFAULT '',
		allergies TEXT NOT NULL DEFAULT '',
		medical_insurance TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	-- Профили врачей
	CREATE TABLE IF NOT EXISTS doctors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER UNIQUE NOT NULL,
		specialization TEXT NOT NULL DEFAULT 'general',
		license_number TEXT UNIQUE NOT NULL,
		experience_years INTEGER NOT NULL DEFAULT 0,
		consultation_fee REAL NOT NULL DEFAULT 0,
		is_available INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	-- Профили администраторов
	CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER UNIQUE NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		employee_id TEXT UNIQUE NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	-- Записи на прием
	CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		doctor_id INTEGER NOT NULL,
		appointment_date TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		reason TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(patient_id) REFERENCES patients(id) ON DELETE CASCADE,
		FOREIGN KEY(doctor_id) REFERENCES doctors(id) ON DELETE CASCADE
	);

	-- Медицинские карты
	CREATE TABLE IF NOT EXISTS medical_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		doctor_id INTEGER NOT NULL,
		appointment_id INTEGER,
		diagnosis TEXT NOT NULL,
		symptoms TEXT NOT NULL,
		treatment_plan TEXT NOT NULL,
		vital_signs TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(patient_id) REFERENCES patients(id) ON DELETE CASCADE,
		FOREIGN KEY(doctor_id) REFERENCES doctors(id) ON DELETE CASCADE,
		FOREIGN KEY(appointment_id) REFERENCES appointments(id) ON DELETE CASCADE
	);

	-- Назначения
	CREATE TABLE IF NOT EXISTS prescriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		doctor_id INTEGER NOT NULL,
		medical_record_id INTEGER,
		medication_name TEXT NOT NULL,
		dosage TEXT NOT NULL,
		frequency TEXT NOT NULL,
		duration TEXT NOT NULL,
		instructions TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(patient_id) REFERENCES patients(id) ON DELETE CASCADE,
		FOREIGN KEY(doctor_id) REFERENCES doctors(id) ON DELETE CASCADE,
		FOREIGN KEY(medical_record_id) REFERENCES medical_records(id) ON DELETE CASCADE
	);

	-- Результаты проверки симптомов
	CREATE TABLE IF NOT EXISTS symptom_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER,
		symptoms TEXT NOT NULL,
		predicted_conditions TEXT NOT NULL DEFAULT '[]',
		confidence_scores TEXT NOT NULL DEFAULT '{}',
		recommendations TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(patient_id) REFERENCES patients(id) ON DELETE CASCADE
	);

	-- Токены доступа
	CREATE TABLE IF NOT EXISTS auth_tokens (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('access', 'refresh')),
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_doctor ON appointments(doctor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_medical_records_patient ON medical_records(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_medical_records_doctor ON medical_records(doctor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_prescriptions_patient ON prescriptions(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_prescriptions_doctor ON prescriptions(doctor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_symptom_checks_patient ON symptom_checks(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_tokens_user ON auth_tokens(user_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
