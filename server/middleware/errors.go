package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"
)

// ErrorResponse структура ответа об ошибке
type ErrorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// WriteJSONError записывает JSON ошибку
func WriteJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeError(w, ErrorResponse{Error: message}, statusCode)
}

// WriteFieldErrors записывает 400 с ошибками по полям
func WriteFieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	writeError(w, ErrorResponse{Error: message, Fields: fields}, http.StatusBadRequest)
}

func writeError(w http.ResponseWriter, response ErrorResponse, statusCode int) {
	response.Timestamp = time.Now().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding JSON error response: %v", err)
	}
}

// WriteJSONResponse записывает JSON ответ; данные кодируются до отправки статуса
func WriteJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error encoding JSON response: %v", err)
		WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// RecoverMiddleware обрабатывает паники
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[ERROR] panic recovered on %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
				WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
