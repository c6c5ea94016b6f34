package server

import (
	"errors"
	"net/http"
	"strings"

	"smarthms/auth"
	"smarthms/database"
	"smarthms/server/middleware"
)

// handleRegister регистрирует пользователя и сразу выдает токены
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, ok := s.registerUser(w, r, req)
	if !ok {
		return
	}
	tokens, err := s.auth.IssueTokens(user.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logf("INFO", "registered user %s (%s)", user.Username, user.Role)
	s.dashboardCache.Invalidate(adminTotalsKey)
	s.writeJSONResponse(w, AuthResponse{User: user, Tokens: tokens}, http.StatusCreated)
}

// registerUser создает пользователя; при ошибке ответ уже записан
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request, req auth.RegisterRequest) (*database.User, bool) {
	user, err := s.auth.Register(req)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.WriteFieldErrors(w, "Validation failed.", verr.Fields)
		return nil, false
	case errors.Is(err, database.ErrConflict):
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{
			"username": "A user with that username already exists.",
		})
		return nil, false
	case err != nil:
		s.writeStoreError(w, r, err)
		return nil, false
	}
	return user, true
}

// handleLogin выдает пару токенов по логину и паролю
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.writeJSONError(w, "Must include username and password.", http.StatusBadRequest)
		return
	}

	user, tokens, err := s.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logf("WARN", "failed login for %q from %s", req.Username, s.limiter.ClientIP(r))
		s.writeJSONError(w, "Invalid credentials.", http.StatusBadRequest)
		return
	case errors.Is(err, auth.ErrInactiveUser):
		s.writeJSONError(w, "User account is disabled.", http.StatusBadRequest)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSONResponse(w, AuthResponse{User: user, Tokens: tokens}, http.StatusOK)
}

// handleRefresh обменивает refresh-токен на новый токен доступа
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Refresh == "" {
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{"refresh": "This field is required."})
		return
	}

	tokens, err := s.auth.Refresh(req.Refresh)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
		s.writeJSONError(w, "Token is invalid or expired", http.StatusUnauthorized)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, tokens, http.StatusOK)
}

// handleLogout отзывает текущий токен доступа и, если передан, refresh-токен
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user *database.User) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	for _, token := range []string{bearerToken(r), req.Refresh} {
		if token == "" {
			continue
		}
		if err := s.auth.Logout(token); err != nil && !errors.Is(err, database.ErrNotFound) {
			s.writeStoreError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChangePassword меняет пароль и выдает новую пару токенов
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user *database.User) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tokens, err := s.auth.ChangePassword(user, req.OldPassword, req.NewPassword)
	var verr *auth.ValidationError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		middleware.WriteFieldErrors(w, "Validation failed.", map[string]string{"old_password": "Wrong password."})
		return
	case errors.As(err, &verr):
		middleware.WriteFieldErrors(w, "Validation failed.", verr.Fields)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}
	s.logf("INFO", "user %s changed password", user.Username)
	s.writeJSONResponse(w, tokens, http.StatusOK)
}

// handleDashboard возвращает данные панели в зависимости от роли
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user *database.User) {
	data := map[string]interface{}{"user": user}

	switch user.Role {
	case database.RolePatient:
		d, err := s.db.GetPatientDashboard(user.ID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		data["appointments"] = d.Appointments
		data["prescriptions"] = d.Prescriptions
		data["medical_records"] = d.MedicalRecords

	case database.RoleDoctor:
		d, err := s.db.GetDoctorDashboard(user.ID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		data["appointments"] = d.Appointments
		data["patients"] = d.Patients

	case database.RoleAdmin:
		stats, err := s.adminTotals()
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		data["stats"] = stats
	}

	s.writeJSONResponse(w, data, http.StatusOK)
}

const adminTotalsKey = "admin_totals"

// adminTotals счетчики из кеша или базы
func (s *Server) adminTotals() (*database.AdminTotals, error) {
	if cached, ok := s.dashboardCache.Get(adminTotalsKey); ok {
		return cached.(*database.AdminTotals), nil
	}
	totals, err := s.db.GetAdminTotals()
	if err != nil {
		return nil, err
	}
	s.dashboardCache.Set(adminTotalsKey, totals)
	return totals, nil
}
