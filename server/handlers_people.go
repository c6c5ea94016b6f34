package server

import (
	"errors"
	"fmt"
	"net/http"

	"smarthms/auth"
	"smarthms/database"
	"smarthms/server/middleware"
)

// Пользователи

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, user *database.User) {
	users, err := s.db.ListUsers(scopeOf(user))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, users, http.StatusOK)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role != database.RoleAdmin {
		s.forbidden(w)
		return
	}
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	created, ok := s.registerUser(w, r, req)
	if !ok {
		return
	}
	s.logf("INFO", "admin %s created user %s (%s)", user.Username, created.Username, created.Role)
	s.dashboardCache.Invalidate(adminTotalsKey)
	s.writeJSONResponse(w, created, http.StatusCreated)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	found, err := s.db.GetUserScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, found, http.StatusOK)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetUserScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role != database.RoleAdmin && user.ID != id {
		s.forbidden(w)
		return
	}

	var upd database.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if user.Role != database.RoleAdmin {
		upd.IsActive = nil
	}
	if err := s.db.UpdateUser(id, upd); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	updated, err := s.db.GetUser(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, updated, http.StatusOK)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, user *database.User) {
	s.adminDelete(w, r, user, s.db.DeleteUser, "user")
}

// adminDelete удаление, доступное только администратору
func (s *Server) adminDelete(w http.ResponseWriter, r *http.Request, user *database.User, del func(int) error, kind string) {
	if user.Role != database.RoleAdmin {
		s.forbidden(w)
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if err := del(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logf("INFO", "admin %s deleted %s %d", user.Username, kind, id)
	s.dashboardCache.Invalidate(adminTotalsKey)
	w.WriteHeader(http.StatusNoContent)
}

// profileOwner проверяет пользователя, для которого создается профиль
func (s *Server) profileOwner(w http.ResponseWriter, r *http.Request, userID int, role string) bool {
	owner, err := s.db.GetUser(userID)
	if errors.Is(err, database.ErrNotFound) {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{"user_id": "User does not exist."})
		return false
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return false
	}
	if owner.Role != role {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{
			"user_id": fmt.Sprintf("User role is %q, expected %q.", owner.Role, role),
		})
		return false
	}
	return true
}

// Пациенты

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request, user *database.User) {
	patients, err := s.db.ListPatients(scopeOf(user), 0)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, patients, http.StatusOK)
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role != database.RoleAdmin {
		s.forbidden(w)
		return
	}
	var req ProfileCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.profileOwner(w, r, req.UserID, database.RolePatient) {
		return
	}
	p := &database.Patient{
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
		BloodType:        req.BloodType,
		Allergies:        req.Allergies,
		MedicalInsurance: req.MedicalInsurance,
	}
	if err := s.db.CreatePatient(req.UserID, p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.dashboardCache.Invalidate(adminTotalsKey)
	s.writeJSONResponse(w, p, http.StatusCreated)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	p, err := s.db.GetPatientScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, p, http.StatusOK)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	p, err := s.db.GetPatientScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role != database.RoleAdmin && p.User.ID != user.ID {
		s.forbidden(w)
		return
	}
	var upd database.PatientUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.db.UpdatePatient(id, upd); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if p, err = s.db.GetPatient(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, p, http.StatusOK)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request, user *database.User) {
	s.adminDelete(w, r, user, s.db.DeletePatient, "patient")
}

// Врачи

func (s *Server) handleListDoctors(w http.ResponseWriter, r *http.Request, user *database.User) {
	doctors, err := s.db.ListDoctors(scopeOf(user))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, doctors, http.StatusOK)
}

func (s *Server) handleCreateDoctor(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role != database.RoleAdmin {
		s.forbidden(w)
		return
	}
	var req ProfileCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Specialization != "" && !database.ValidSpecialization(req.Specialization) {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{
			"specialization": fmt.Sprintf("%q is not a valid choice.", req.Specialization),
		})
		return
	}
	if !s.profileOwner(w, r, req.UserID, database.RoleDoctor) {
		return
	}
	d := &database.Doctor{
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
		IsAvailable:     req.IsAvailable == nil || *req.IsAvailable,
	}
	if d.LicenseNumber == "" {
		d.LicenseNumber = fmt.Sprintf("DOC%06d", req.UserID)
	}
	if err := s.db.CreateDoctor(req.UserID, d); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.dashboardCache.Invalidate(adminTotalsKey)
	s.writeJSONResponse(w, d, http.StatusCreated)
}

func (s *Server) handleGetDoctor(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	d, err := s.db.GetDoctorScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, d, http.StatusOK)
}

func (s *Server) handleUpdateDoctor(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	d, err := s.db.GetDoctorScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user.Role != database.RoleAdmin && d.User.ID != user.ID {
		s.forbidden(w)
		return
	}
	var upd database.DoctorUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if upd.Specialization != nil && !database.ValidSpecialization(*upd.Specialization) {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{
			"specialization": fmt.Sprintf("%q is not a valid choice.", *upd.Specialization),
		})
		return
	}
	if err := s.db.UpdateDoctor(id, upd); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if d, err = s.db.GetDoctor(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, d, http.StatusOK)
}

func (s *Server) handleDeleteDoctor(w http.ResponseWriter, r *http.Request, user *database.User) {
	s.adminDelete(w, r, user, s.db.DeleteDoctor, "doctor")
}

// Администраторы

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request, user *database.User) {
	admins, err := s.db.ListAdmins(scopeOf(user))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, admins, http.StatusOK)
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role != database.RoleAdmin {
		s.forbidden(w)
		return
	}
	var req ProfileCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.profileOwner(w, r, req.UserID, database.RoleAdmin) {
		return
	}
	a := &database.Admin{Department: req.Department, EmployeeID: req.EmployeeID}
	if a.EmployeeID == "" {
		a.EmployeeID = fmt.Sprintf("ADM%06d", req.UserID)
	}
	if err := s.db.CreateAdmin(req.UserID, a); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, a, http.StatusCreated)
}

func (s *Server) handleGetAdmin(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	a, err := s.db.GetAdminScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, a, http.StatusOK)
}

func (s *Server) handleUpdateAdmin(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	if _, err := s.db.GetAdminScoped(scopeOf(user), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var upd database.AdminUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.db.UpdateAdmin(id, upd); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	a, err := s.db.GetAdminScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, a, http.StatusOK)
}

func (s *Server) handleDeleteAdmin(w http.ResponseWriter, r *http.Request, user *database.User) {
	s.adminDelete(w, r, user, s.db.DeleteAdmin, "admin")
}
