package server

import (
	"sync"
	"time"

	"smarthms/auth"
	"smarthms/database"
)

// LogEntry запись лога
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Endpoint  string    `json:"endpoint,omitempty"`
}

// logRing хранит последние записи журнала
type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

func newLogRing(size int) *logRing {
	if size <= 0 {
		size = 100
	}
	return &logRing{entries: make([]LogEntry, size)}
}

func (r *logRing) add(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot записи от старых к новым
func (r *logRing) snapshot() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]LogEntry(nil), r.entries[:r.next]...)
	}
	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// AuthResponse ответ на регистрацию и вход
type AuthResponse struct {
	User   *database.User `json:"user"`
	Tokens *auth.Tokens   `json:"tokens"`
}

// LoginRequest запрос входа
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest запрос обновления токена
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// ChangePasswordRequest запрос смены пароля
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// StatusResponse ответ на действие с записью на прием
type StatusResponse struct {
	Status string `json:"status"`
}

// SymptomRequest запрос проверки симптомов
type SymptomRequest struct {
	Symptoms string `json:"symptoms"`
}

// ProfileCreateRequest создание профиля для существующего пользователя
type ProfileCreateRequest struct {
	UserID int `json:"user_id"`

	// Пациент
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
	BloodType        string `json:"blood_type"`
	Allergies        string `json:"allergies"`
	MedicalInsurance string `json:"medical_insurance"`

	// Врач
	Specialization  string  `json:"specialization"`
	LicenseNumber   string  `json:"license_number"`
	ExperienceYears int     `json:"experience_years"`
	ConsultationFee float64 `json:"consultation_fee"`
	IsAvailable     *bool   `json:"is_available"`

	// Администратор
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
}
