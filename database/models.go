package database

import (
	"encoding/json"
	"time"
)

// Роли пользователей
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// Статусы записи на прием
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Specializations допустимые специализации врачей
var Specializations = []string{
	"cardiology", "neurology", "orthopedics", "pediatrics", "dermatology", "psychiatry", "general",
}

// AppointmentStatuses допустимые статусы записи
var AppointmentStatuses = []string{
	StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled,
}

// ValidRole проверяет роль
func ValidRole(role string) bool {
	return role == RolePatient || role == RoleDoctor || role == RoleAdmin
}

// ValidSpecialization проверяет специализацию
func ValidSpecialization(s string) bool {
	return contains(Specializations, s)
}

// ValidAppointmentStatus проверяет статус записи
func ValidAppointmentStatus(s string) bool {
	return contains(AppointmentStatuses, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Scope вызывающий пользователь, по которому фильтруются выборки
type Scope struct {
	Role   string
	UserID int
}

// User учетная запись
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `json:"role"`
	PhoneNumber  string    `json:"phone_number"`
	Address      string    `json:"address"`
	DateOfBirth  *string   `json:"date_of_birth"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// FullName имя для отображения: "Имя Фамилия", иначе то, что заполнено, иначе логин
func (u *User) FullName() string {
	return FullName(u.FirstName, u.LastName, u.Username)
}

// FullName собирает имя для отображения
func FullName(first, last, username string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return username
	}
}

// Patient профиль пациента
type Patient struct {
	ID               int    `json:"id"`
	User             *User  `json:"user"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
	BloodType        string `json:"blood_type"`
	Allergies        string `json:"allergies"`
	MedicalInsurance string `json:"medical_insurance"`
}

// Doctor профиль врача
type Doctor struct {
	ID              int     `json:"id"`
	User            *User   `json:"user"`
	Specialization  string  `json:"specialization"`
	LicenseNumber   string  `json:"license_number"`
	ExperienceYears int     `json:"experience_years"`
	ConsultationFee float64 `json:"consultation_fee"`
	IsAvailable     bool    `json:"is_available"`
}

// Admin профиль администратора
type Admin struct {
	ID         int    `json:"id"`
	User       *User  `json:"user"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
}

// Appointment запись на прием
type Appointment struct {
	ID              int       `json:"id"`
	PatientID       int       `json:"patient"`
	DoctorID        int       `json:"doctor"`
	PatientName     string    `json:"patient_name"`
	DoctorName      string    `json:"doctor_name"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MedicalRecord медицинская запись
type MedicalRecord struct {
	ID            int             `json:"id"`
	PatientID     int             `json:"patient"`
	DoctorID      int             `json:"doctor"`
	AppointmentID *int            `json:"appointment"`
	PatientName   string          `json:"patient_name"`
	DoctorName    string          `json:"doctor_name"`
	Diagnosis     string          `json:"diagnosis"`
	Symptoms      string          `json:"symptoms"`
	TreatmentPlan string          `json:"treatment_plan"`
	VitalSigns    json.RawMessage `json:"vital_signs"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Prescription назначение препарата
type Prescription struct {
	ID              int       `json:"id"`
	PatientID       int       `json:"patient"`
	DoctorID        int       `json:"doctor"`
	MedicalRecordID *int      `json:"medical_record"`
	PatientName     string    `json:"patient_name"`
	DoctorName      string    `json:"doctor_name"`
	MedicationName  string    `json:"medication_name"`
	Dosage          string    `json:"dosage"`
	Frequency       string    `json:"frequency"`
	Duration        string    `json:"duration"`
	Instructions    string    `json:"instructions"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// SymptomCheck сохраненный результат проверки симптомов
type SymptomCheck struct {
	ID                  int                `json:"id"`
	PatientID           *int               `json:"patient"`
	Symptoms            string             `json:"symptoms"`
	PredictedConditions []string           `json:"predicted_conditions"`
	ConfidenceScores    map[string]float64 `json:"confidence_scores"`
	Recommendations     string             `json:"recommendations"`
	CreatedAt           time.Time          `json:"created_at"`
}
