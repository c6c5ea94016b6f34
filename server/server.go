package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"smarthms/auth"
	"smarthms/database"
	"smarthms/server/middleware"
	"smarthms/symptom"
)

// Server HTTP API больничной системы
type Server struct {
	db             *database.DB
	auth           *auth.Service
	classifier     *symptom.Holder
	config         *Config
	httpServer     *http.Server
	logs           *logRing
	limiter        *middleware.RateLimiter
	dashboardCache *TTLCache
	startTime      time.Time

	handlerOnce sync.Once
	handler     http.Handler
}

// NewServer создает сервер
func NewServer(db *database.DB, classifier *symptom.Holder, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	limiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	if trusted, err := middleware.ParseTrustedProxies(config.TrustedProxies); err != nil {
		log.Printf("[WARNING] %v, X-Forwarded-For is ignored", err)
	} else {
		limiter.TrustProxies(trusted)
	}
	return &Server{
		db:             db,
		auth:           auth.NewService(db, config.AccessTokenTTL, config.RefreshTokenTTL),
		classifier:     classifier,
		config:         config,
		logs:           newLogRing(config.LogBufferSize),
		limiter:        limiter,
		dashboardCache: NewTTLCache(config.DashboardCacheTTL),
		startTime:      time.Now(),
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   fmt.Sprintf("Starting server on port %s", s.config.Port),
	})

	s.httpServer = &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// routes возвращает обработчик, собранный один раз
func (s *Server) routes() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.setupMux()
	})
	return s.handler
}

// setupMux настраивает маршруты и возвращает http.Handler
// Используется как в Start(), так и в ServeHTTP() для тестов
func (s *Server) setupMux() http.Handler {
	mux := http.NewServeMux()
	limited := s.limiter.Middleware

	mux.HandleFunc("GET /health", s.handleHealth)

	// Аутентификация
	mux.Handle("POST /api/auth/register/{$}", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/auth/login/{$}", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /api/auth/token/{$}", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /api/auth/token/refresh/{$}", limited(http.HandlerFunc(s.handleRefresh)))
	mux.HandleFunc("POST /api/auth/logout/{$}", s.authenticated(s.handleLogout))
	mux.Handle("POST /api/auth/change-password/{$}", limited(s.authenticated(s.handleChangePassword)))

	mux.HandleFunc("GET /api/dashboard/{$}", s.authenticated(s.handleDashboard))
	mux.HandleFunc("GET /api/logs", s.authenticated(s.handleLogs))

	// Пользователи и профили
	mux.HandleFunc("GET /api/users/{$}", s.authenticated(s.handleListUsers))
	mux.HandleFunc("POST /api/users/{$}", s.authenticated(s.handleCreateUser))
	mux.HandleFunc("GET /api/users/{id}/{$}", s.authenticated(s.handleGetUser))
	mux.HandleFunc("PATCH /api/users/{id}/{$}", s.authenticated(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{id}/{$}", s.authenticated(s.handleDeleteUser))

	mux.HandleFunc("GET /api/patients/{$}", s.authenticated(s.handleListPatients))
	mux.HandleFunc("POST /api/patients/{$}", s.authenticated(s.handleCreatePatient))
	mux.HandleFunc("GET /api/patients/{id}/{$}", s.authenticated(s.handleGetPatient))
	mux.HandleFunc("PATCH /api/patients/{id}/{$}", s.authenticated(s.handleUpdatePatient))
	mux.HandleFunc("DELETE /api/patients/{id}/{$}", s.authenticated(s.handleDeletePatient))

	mux.HandleFunc("GET /api/doctors/{$}", s.authenticated(s.handleListDoctors))
	mux.HandleFunc("POST /api/doctors/{$}", s.authenticated(s.handleCreateDoctor))
	mux.HandleFunc("GET /api/doctors/{id}/{$}", s.authenticated(s.handleGetDoctor))
	mux.HandleFunc("PATCH /api/doctors/{id}/{$}", s.authenticated(s.handleUpdateDoctor))
	mux.HandleFunc("DELETE /api/doctors/{id}/{$}", s.authenticated(s.handleDeleteDoctor))

	mux.HandleFunc("GET /api/admins/{$}", s.authenticated(s.handleListAdmins))
	mux.HandleFunc("POST /api/admins/{$}", s.authenticated(s.handleCreateAdmin))
	mux.HandleFunc("GET /api/admins/{id}/{$}", s.authenticated(s.handleGetAdmin))
	mux.HandleFunc("PATCH /api/admins/{id}/{$}", s.authenticated(s.handleUpdateAdmin))
	mux.HandleFunc("DELETE /api/admins/{id}/{$}", s.authenticated(s.handleDeleteAdmin))

	// Приемы, медкарты, назначения
	mux.HandleFunc("GET /api/appointments/{$}", s.authenticated(s.handleListAppointments))
	mux.HandleFunc("POST /api/appointments/{$}", s.authenticated(s.handleCreateAppointment))
	mux.HandleFunc("GET /api/appointments/{id}/{$}", s.authenticated(s.handleGetAppointment))
	mux.HandleFunc("PATCH /api/appointments/{id}/{$}", s.authenticated(s.handleUpdateAppointment))
	mux.HandleFunc("DELETE /api/appointments/{id}/{$}", s.authenticated(s.handleDeleteAppointment))
	mux.HandleFunc("POST /api/appointments/{id}/confirm/{$}", s.authenticated(s.handleAppointmentStatus(database.StatusConfirmed)))
	mux.HandleFunc("POST /api/appointments/{id}/cancel/{$}", s.authenticated(s.handleAppointmentStatus(database.StatusCancelled)))

	mux.HandleFunc("GET /api/medical-records/{$}", s.authenticated(s.handleListRecords))
	mux.HandleFunc("POST /api/medical-records/{$}", s.authenticated(s.handleCreateRecord))
	mux.HandleFunc("GET /api/medical-records/{id}/{$}", s.authenticated(s.handleGetRecord))
	mux.HandleFunc("PATCH /api/medical-records/{id}/{$}", s.authenticated(s.handleUpdateRecord))
	mux.HandleFunc("DELETE /api/medical-records/{id}/{$}", s.authenticated(s.handleDeleteRecord))

	mux.HandleFunc("GET /api/prescriptions/{$}", s.authenticated(s.handleListPrescriptions))
	mux.HandleFunc("POST /api/prescriptions/{$}", s.authenticated(s.handleCreatePrescription))
	mux.HandleFunc("GET /api/prescriptions/{id}/{$}", s.authenticated(s.handleGetPrescription))
	mux.HandleFunc("PATCH /api/prescriptions/{id}/{$}", s.authenticated(s.handleUpdatePrescription))
	mux.HandleFunc("DELETE /api/prescriptions/{id}/{$}", s.authenticated(s.handleDeletePrescription))

	// Проверка симптомов
	analyze := limited(http.HandlerFunc(s.authenticated(s.handleAnalyzeSymptoms)))
	mux.Handle("POST /api/ai/symptom-checker/{$}", analyze)
	mux.Handle("POST /api/symptom-checker/analyze/{$}", analyze)
	mux.HandleFunc("GET /api/ai/symptom-checker/status/{$}", s.authenticated(s.handleClassifierStatus))
	mux.HandleFunc("GET /api/symptom-checker/{$}", s.authenticated(s.handleListSymptomChecks))
	mux.HandleFunc("GET /api/symptom-checker/{id}/{$}", s.authenticated(s.handleGetSymptomCheck))

	// Применяем middleware: Recover снаружи, затем SecurityHeaders, RequestID, Logging
	handler := s.LoggingMiddleware(mux)
	handler = RequestIDMiddleware(handler)
	handler = SecurityHeadersMiddleware(s.config.AllowedOrigins)(handler)
	handler = middleware.RecoverMiddleware(handler)

	return handler
}

// ServeHTTP реализует интерфейс http.Handler для использования в тестах
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.routes().ServeHTTP(w, r)
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   "Shutting down server...",
	})

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// log пишет запись в журнал и стандартный лог
func (s *Server) log(entry LogEntry) {
	s.logs.add(entry)
	log.Printf("[%s] %s: %s", entry.Level, entry.Timestamp.Format("15:04:05"), entry.Message)
}

func (s *Server) logf(level, format string, args ...interface{}) {
	s.log(LogEntry{Timestamp: time.Now(), Level: level, Message: fmt.Sprintf(format, args...)})
}

// Logs возвращает последние записи журнала
func (s *Server) Logs() []LogEntry {
	return s.logs.snapshot()
}

// handleHealth обрабатывает проверку здоровья сервера
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.db.Ping(); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	s.writeJSONResponse(w, map[string]interface{}{
		"status":     status,
		"time":       time.Now().Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"classifier": s.classifier.Current().Mode(),
	}, code)
}

// handleLogs отдает журнал сервера администратору
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, user *database.User) {
	if user.Role != database.RoleAdmin {
		s.writeJSONError(w, "You do not have permission to perform this action.", http.StatusForbidden)
		return
	}
	s.writeJSONResponse(w, s.Logs(), http.StatusOK)
}

// writeJSONResponse записывает JSON ответ
func (s *Server) writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	middleware.WriteJSONResponse(w, data, statusCode)
}

// writeJSONError записывает JSON ошибку
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	middleware.WriteJSONError(w, message, statusCode)
}

// writeStoreError переводит ошибки хранилища в HTTP статусы
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
	case errors.Is(err, database.ErrConflict):
		s.writeJSONError(w, "A record with these values already exists.", http.StatusBadRequest)
	case errors.Is(err, database.ErrInvalidReference):
		s.writeJSONError(w, "Referenced record does not exist.", http.StatusBadRequest)
	default:
		s.logf("ERROR", "[%s] %s %s: %v", RequestID(r.Context()), r.Method, r.URL.Path, err)
		s.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON читает тело запроса
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// pathID разбирает {id} из пути
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	for _, prefix := range []string{"Bearer ", "bearer "} {
		if strings.HasPrefix(header, prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
	}
	return ""
}

type authHandler func(w http.ResponseWriter, r *http.Request, user *database.User)

// authenticated требует действующий токен доступа
func (s *Server) authenticated(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeJSONError(w, "Authentication credentials were not provided.", http.StatusUnauthorized)
			return
		}
		user, err := s.auth.Authenticate(token)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			s.writeJSONError(w, "Token has expired.", http.StatusUnauthorized)
			return
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInactiveUser):
			s.writeJSONError(w, "Given token not valid.", http.StatusUnauthorized)
			return
		case err != nil:
			s.writeStoreError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

func scopeOf(user *database.User) database.Scope {
	return database.Scope{Role: user.Role, UserID: user.ID}
}

func (s *Server) forbidden(w http.ResponseWriter) {
	s.writeJSONError(w, "You do not have permission to perform this action.", http.StatusForbidden)
}
