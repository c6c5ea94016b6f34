package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"smarthms/database"
	"smarthms/server/middleware"
)

// appointmentRequest тело создания записи на прием
type appointmentRequest struct {
	PatientID       int       `json:"patient"`
	DoctorID        int       `json:"doctor"`
	AppointmentDate time.Time `json:"appointment_date"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
}

// recordRequest тело создания медицинской записи
type recordRequest struct {
	PatientID     int             `json:"patient"`
	DoctorID      int             `json:"doctor"`
	AppointmentID *int            `json:"appointment"`
	Diagnosis     string          `json:"diagnosis"`
	Symptoms      string          `json:"symptoms"`
	TreatmentPlan string          `json:"treatment_plan"`
	VitalSigns    json.RawMessage `json:"vital_signs"`
}

// prescriptionRequest тело создания назначения
type prescriptionRequest struct {
	PatientID       int    `json:"patient"`
	DoctorID        int    `json:"doctor"`
	MedicalRecordID *int   `json:"medical_record"`
	MedicationName  string `json:"medication_name"`
	Dosage          string `json:"dosage"`
	Frequency       string `json:"frequency"`
	Duration        string `json:"duration"`
	Instructions    string `json:"instructions"`
}

// requireFields проверяет непустые строковые поля
func requireFields(fields map[string]string) map[string]string {
	errs := map[string]string{}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			errs[name] = "This field is required."
		}
	}
	return errs
}

// bindParties подставляет профиль вызывающего: пациент записывается только к себе,
// врач создает записи только от своего имени
func (s *Server) bindParties(w http.ResponseWriter, r *http.Request, user *database.User, patientID, doctorID *int) bool {
	switch user.Role {
	case database.RolePatient:
		p, err := s.db.GetPatientByUserID(user.ID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return false
		}
		*patientID = p.ID
	case database.RoleDoctor:
		d, err := s.db.GetDoctorByUserID(user.ID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return false
		}
		*doctorID = d.ID
	}

	errs := map[string]string{}
	if *patientID <= 0 {
		errs["patient"] = "This field is required."
	}
	if *doctorID <= 0 {
		errs["doctor"] = "This field is required."
	}
	if len(errs) > 0 {
		middleware.WriteFieldErrors(w, "Validation failed.", errs)
		return false
	}
	return true
}

// Записи на прием

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request, user *database.User) {
	list, err := s.db.ListAppointments(scopeOf(user), 0)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, list, http.StatusOK)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request, user *database.User) {
	var req appointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	errs := requireFields(map[string]string{"reason": req.Reason})
	if req.AppointmentDate.IsZero() {
		errs["appointment_date"] = "This field is required."
	}
	if req.Status != "" && !database.ValidAppointmentStatus(req.Status) {
		errs["status"] = "Not a valid choice."
	}
	if len(errs) > 0 {
		middleware.WriteFieldErrors(w, "Validation failed.", errs)
		return
	}
	if !s.bindParties(w, r, user, &req.PatientID, &req.DoctorID) {
		return
	}

	a := &database.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate,
		Status:          req.Status,
		Reason:          req.Reason,
		Notes:           req.Notes,
	}
	if err := s.db.CreateAppointment(a); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.dashboardCache.Invalidate(adminTotalsKey)
	s.writeJSONResponse(w, a, http.StatusCreated)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	a, err := s.db.GetAppointmentScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, a, http.StatusOK)
}

func (s *Server) handleUpdateAppointment(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetAppointmentScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var upd database.AppointmentUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if upd.Status != nil && !database.ValidAppointmentStatus(*upd.Status) {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{"status": "Not a valid choice."})
		return
	}
	if err := s.db.UpdateAppointment(id, upd); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	a, err := s.db.GetAppointment(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, a, http.StatusOK)
}

func (s *Server) handleDeleteAppointment(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetAppointmentScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.db.DeleteAppointment(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.dashboardCache.Invalidate(adminTotalsKey)
	w.WriteHeader(http.StatusNoContent)
}

// handleAppointmentStatus подтверждение или отмена записи
func (s *Server) handleAppointmentStatus(status string) authHandler {
	message := "Appointment " + status
	return func(w http.ResponseWriter, r *http.Request, user *database.User) {
		id, ok := pathID(r)
		if !ok {
			s.writeJSONError(w, "Not found.", http.StatusNotFound)
			return
		}
		if _, err := s.db.GetAppointmentScoped(scopeOf(user), id); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if err := s.db.SetAppointmentStatus(id, status); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.logf("INFO", "appointment %d %s by %s", id, status, user.Username)
		s.writeJSONResponse(w, StatusResponse{Status: message}, http.StatusOK)
	}
}

// Медицинские записи

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request, user *database.User) {
	list, err := s.db.ListMedicalRecords(scopeOf(user), 0)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, list, http.StatusOK)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role == database.RolePatient {
		s.forbidden(w)
		return
	}
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	errs := requireFields(map[string]string{
		"diagnosis":      req.Diagnosis,
		"symptoms":       req.Symptoms,
		"treatment_plan": req.TreatmentPlan,
	})
	if len(errs) > 0 {
		middleware.WriteFieldErrors(w, "Validation failed.", errs)
		return
	}
	if !s.bindParties(w, r, user, &req.PatientID, &req.DoctorID) {
		return
	}

	m := &database.MedicalRecord{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		AppointmentID: req.AppointmentID,
		Diagnosis:     req.Diagnosis,
		Symptoms:      req.Symptoms,
		TreatmentPlan: req.TreatmentPlan,
		VitalSigns:    req.VitalSigns,
	}
	if err := s.db.CreateMedicalRecord(m); err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	s.writeJSONResponse(w, m, http.StatusCreated)
}

// writeRecordError ошибки формата vital_signs отдаются как 400
func (s *Server) writeRecordError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrInvalidVitalSigns) {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{"vital_signs": err.Error()})
		return
	}
	s.writeStoreError(w, r, err)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	m, err := s.db.GetMedicalRecordScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, m, http.StatusOK)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetMedicalRecordScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role == database.RolePatient {
		s.forbidden(w)
		return
	}
	var upd database.MedicalRecordUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.db.UpdateMedicalRecord(id, upd); err != nil {
		s.writeRecordError(w, r, err)
		return
	}
	m, err := s.db.GetMedicalRecord(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, m, http.StatusOK)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetMedicalRecordScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role == database.RolePatient {
		s.forbidden(w)
		return
	}
	if err := s.db.DeleteMedicalRecord(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Назначения

func (s *Server) handleListPrescriptions(w http.ResponseWriter, r *http.Request, user *database.User) {
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := s.db.ListPrescriptions(scopeOf(user), activeOnly, 0)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, list, http.StatusOK)
}

func (s *Server) handleCreatePrescription(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role == database.RolePatient {
		s.forbidden(w)
		return
	}
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	errs := requireFields(map[string]string{
		"medication_name": req.MedicationName,
		"dosage":          req.Dosage,
		"frequency":       req.Frequency,
		"duration":        req.Duration,
	})
	if len(errs) > 0 {
		middleware.WriteFieldErrors(w, "Validation failed.", errs)
		return
	}
	if !s.bindParties(w, r, user, &req.PatientID, &req.DoctorID) {
		return
	}

	p := &database.Prescription{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		MedicalRecordID: req.MedicalRecordID,
		MedicationName:  req.MedicationName,
		Dosage:          req.Dosage,
		Frequency:       req.Frequency,
		Duration:        req.Duration,
		Instructions:    req.Instructions,
	}
	if err := s.db.CreatePrescription(p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, p, http.StatusCreated)
}

func (s *Server) handleGetPrescription(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	p, err := s.db.GetPrescriptionScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, p, http.StatusOK)
}

func (s *Server) handleUpdatePrescription(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetPrescriptionScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role == database.RolePatient {
		s.forbidden(w)
		return
	}
	var upd database.PrescriptionUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.db.UpdatePrescription(id, upd); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	p, err := s.db.GetPrescription(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, p, http.StatusOK)
}

func (s *Server) handleDeletePrescription(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetPrescriptionScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role == database.RolePatient {
		s.forbidden(w)
		return
	}
	if err := s.db.DeletePrescription(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
