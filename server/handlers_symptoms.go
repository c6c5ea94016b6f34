package server

import (
	"errors"
	"net/http"
	"strings"

	"smarthms/database"
)

// handleAnalyzeSymptoms прогоняет симптомы через классификатор и сохраняет результат
func (s *Server) handleAnalyzeSymptoms(w http.ResponseWriter, r *http.Request, user *database.User) {
	var req SymptomRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		s.writeJSONError(w, "Symptoms are required", http.StatusBadRequest)
		return
	}

	prediction := s.classifier.Predict(req.Symptoms)

	check := &database.SymptomCheck{
		Symptoms:            req.Symptoms,
		PredictedConditions: prediction.Conditions,
		ConfidenceScores:    prediction.Confidence,
		Recommendations:     prediction.Recommendations,
	}
	if user.Role == database.RolePatient {
		p, err := s.db.GetPatientByUserID(user.ID)
		switch {
		case err == nil:
			check.PatientID = &p.ID
		case !errors.Is(err, database.ErrNotFound):
			s.writeStoreError(w, r, err)
			return
		}
	}

	if err := s.db.CreateSymptomCheck(check); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, check, http.StatusOK)
}

// handleClassifierStatus режим классификатора и причины деградации
func (s *Server) handleClassifierStatus(w http.ResponseWriter, r *http.Request, user *database.User) {
	s.writeJSONResponse(w, s.classifier.Current().Status(), http.StatusOK)
}

func (s *Server) handleListSymptomChecks(w http.ResponseWriter, r *http.Request, user *database.User) {
	list, err := s.db.ListSymptomChecks(scopeOf(user))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, list, http.StatusOK)
}

func (s *Server) handleGetSymptomCheck(w http.ResponseWriter, r *http.Request, user *database.User) {
	id, ok := pathID(r)
	if !ok {
		s.writeJSONError(w, "Not found.", http.StatusNotFound)
		return
	}
	check, err := s.db.GetSymptomCheckScoped(scopeOf(user), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSONResponse(w, check, http.StatusOK)
}
