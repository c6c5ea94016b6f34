package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smarthms/database"
	"smarthms/server"
	"smarthms/symptom"
)

type client struct {
	t   *testing.T
	srv *server.Server
}

func (c client) do(method, path, token string, body interface{}, dst interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.srv.ServeHTTP(w, req)
	if dst != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
			c.t.Fatalf("%s %s: failed to decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

type authResponse struct {
	User   database.User `json:"user"`
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

// TestHospitalFlow проходит путь пациента от регистрации до назначения
func TestHospitalFlow(t *testing.T) {
	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test DB: %v", err)
	}
	defer db.Close()

	checker := symptom.New(symptom.Config{SkipArtifact: true, Logf: func(string, ...interface{}) {}})
	if checker.Mode() != symptom.ModeTrained {
		t.Fatalf("expected trained classifier, got %q (%v)", checker.Mode(), checker.Degradations())
	}

	config := server.DefaultConfig()
	config.DatabasePath = ":memory:"
	config.RateLimitRPS = 1000
	config.RateLimitBurst = 1000
	srv := server.NewServer(db, symptom.NewHolder(checker), config)
	c := client{t: t, srv: srv}

	var admin, doctor, patient authResponse
	var doctorProfile database.Doctor
	var appointment database.Appointment
	var record database.MedicalRecord

	t.Run("Register", func(t *testing.T) {
		for _, reg := range []struct {
			username, role string
			dst            *authResponse
		}{
			{"admin", "admin", &admin},
			{"dr_smith", "doctor", &doctor},
			{"patient1", "patient", &patient},
		} {
			code := c.do(http.MethodPost, "/api/auth/register/", "", map[string]string{
				"username":         reg.username,
				"password":         "password123",
				"password_confirm": "password123",
				"first_name":       "Test",
				"last_name":        reg.username,
				"role":             reg.role,
			}, reg.dst)
			if code != http.StatusCreated {
				t.Fatalf("register %s: expected 201, got %d", reg.username, code)
			}
		}
	})

	t.Run("AdminAdjustsDoctor", func(t *testing.T) {
		var doctors []database.Doctor
		c.do(http.MethodGet, "/api/doctors/", admin.Tokens.Access, nil, &doctors)
		if len(doctors) != 1 {
			t.Fatalf("expected 1 doctor, got %d", len(doctors))
		}
		code := c.do(http.MethodPatch, fmt.Sprintf("/api/doctors/%d/", doctors[0].ID), admin.Tokens.Access,
			map[string]interface{}{"specialization": "cardiology", "consultation_fee": 150.0}, &doctorProfile)
		if code != http.StatusOK || doctorProfile.Specialization != "cardiology" {
			t.Fatalf("doctor update failed: %d %+v", code, doctorProfile)
		}
	})

	t.Run("PatientBooksAppointment", func(t *testing.T) {
		code := c.do(http.MethodPost, "/api/appointments/", patient.Tokens.Access, map[string]interface{}{
			"doctor":           doctorProfile.ID,
			"appointment_date": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			"reason":           "Chest pain during exercise",
		}, &appointment)
		if code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", code)
		}
		if appointment.DoctorName != "Test dr_smith" || appointment.PatientName != "Test patient1" {
			t.Fatalf("unexpected names %q / %q", appointment.DoctorName, appointment.PatientName)
		}
	})

	t.Run("DoctorConfirmsAndRecords", func(t *testing.T) {
		var status server.StatusResponse
		if code := c.do(http.MethodPost, fmt.Sprintf("/api/appointments/%d/confirm/", appointment.ID),
			doctor.Tokens.Access, nil, &status); code != http.StatusOK {
			t.Fatalf("confirm: expected 200, got %d", code)
		}

		code := c.do(http.MethodPost, "/api/medical-records/", doctor.Tokens.Access, map[string]interface{}{
			"patient":        appointment.PatientID,
			"appointment":    appointment.ID,
			"diagnosis":      "Stable angina",
			"symptoms":       "chest pain, shortness of breath",
			"treatment_plan": "Beta blockers and follow-up",
			"vital_signs":    map[string]interface{}{"blood_pressure": "130/85", "heart_rate": 88},
		}, &record)
		if code != http.StatusCreated {
			t.Fatalf("record: expected 201, got %d", code)
		}

		var prescription database.Prescription
		code = c.do(http.MethodPost, "/api/prescriptions/", doctor.Tokens.Access, map[string]interface{}{
			"patient":         appointment.PatientID,
			"medical_record":  record.ID,
			"medication_name": "Metoprolol",
			"dosage":          "50mg",
			"frequency":       "Twice daily",
			"duration":        "30 days",
		}, &prescription)
		if code != http.StatusCreated || !prescription.IsActive {
			t.Fatalf("prescription: expected 201 active, got %d %+v", code, prescription)
		}
	})

	t.Run("PatientChecksSymptoms", func(t *testing.T) {
		var check database.SymptomCheck
		code := c.do(http.MethodPost, "/api/ai/symptom-checker/", patient.Tokens.Access,
			map[string]string{"symptoms": "chest pain and shortness of breath"}, &check)
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		if n := len(check.PredictedConditions); n == 0 || n > symptom.TopN {
			t.Fatalf("unexpected number of conditions %d", n)
		}
		if check.Recommendations == "" {
			t.Fatal("recommendations missing")
		}

		// Врач видит проверки своего пациента
		var checks []database.SymptomCheck
		c.do(http.MethodGet, "/api/symptom-checker/", doctor.Tokens.Access, nil, &checks)
		if len(checks) != 1 || checks[0].ID != check.ID {
			t.Fatalf("doctor expected the patient's check, got %d", len(checks))
		}
	})

	t.Run("Dashboards", func(t *testing.T) {
		var patientDash struct {
			Appointments   []database.Appointment   `json:"appointments"`
			Prescriptions  []database.Prescription  `json:"prescriptions"`
			MedicalRecords []database.MedicalRecord `json:"medical_records"`
		}
		c.do(http.MethodGet, "/api/dashboard/", patient.Tokens.Access, nil, &patientDash)
		if len(patientDash.Appointments) != 1 || len(patientDash.Prescriptions) != 1 || len(patientDash.MedicalRecords) != 1 {
			t.Fatalf("unexpected patient dashboard %+v", patientDash)
		}
		if patientDash.Appointments[0].Status != database.StatusConfirmed {
			t.Fatalf("expected confirmed appointment, got %q", patientDash.Appointments[0].Status)
		}

		var doctorDash struct {
			Patients []database.Patient `json:"patients"`
		}
		c.do(http.MethodGet, "/api/dashboard/", doctor.Tokens.Access, nil, &doctorDash)
		if len(doctorDash.Patients) != 1 {
			t.Fatalf("doctor expected 1 patient, got %d", len(doctorDash.Patients))
		}

		var adminDash struct {
			Stats database.AdminTotals `json:"stats"`
		}
		c.do(http.MethodGet, "/api/dashboard/", admin.Tokens.Access, nil, &adminDash)
		if adminDash.Stats.TotalAppointments != 1 || adminDash.Stats.TotalUsers != 3 {
			t.Fatalf("unexpected admin stats %+v", adminDash.Stats)
		}
	})

	t.Run("AdminRemovesPatient", func(t *testing.T) {
		if code := c.do(http.MethodDelete, fmt.Sprintf("/api/users/%d/", patient.User.ID), admin.Tokens.Access, nil, nil); code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", code)
		}
		var appointments []database.Appointment
		c.do(http.MethodGet, "/api/appointments/", doctor.Tokens.Access, nil, &appointments)
		if len(appointments) != 0 {
			t.Fatalf("appointments should cascade with the patient, got %d", len(appointments))
		}
		var adminDash struct {
			Stats database.AdminTotals `json:"stats"`
		}
		c.do(http.MethodGet, "/api/dashboard/", admin.Tokens.Access, nil, &adminDash)
		if adminDash.Stats.TotalUsers != 2 {
			t.Fatalf("dashboard cache not invalidated: %+v", adminDash.Stats)
		}
	})
}
