package database

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	admin    *User
	doctor   *Doctor
	other    *Doctor
	patient  *Patient
	stranger *Patient
	appt     *Appointment
}

func createUser(t *testing.T, db *DB, username, role, first, last string) *User {
	t.Helper()
	u := &User{Username: username, Role: role, FirstName: first, LastName: last}
	if err := db.CreateUser(u); err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return u
}

func seedFixture(t *testing.T, db *DB) fixture {
	t.Helper()
	var f fixture
	f.admin = createUser(t, db, "admin", RoleAdmin, "", "")
	if err := db.CreateAdmin(f.admin.ID, &Admin{Department: "Administration", EmployeeID: "ADM000001"}); err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}

	f.doctor = &Doctor{Specialization: "cardiology", LicenseNumber: "DOC000002", IsAvailable: true}
	if err := db.CreateDoctor(createUser(t, db, "dr_smith", RoleDoctor, "John", "Smith").ID, f.doctor); err != nil {
		t.Fatalf("Failed to create doctor: %v", err)
	}
	f.other = &Doctor{LicenseNumber: "DOC000003"}
	if err := db.CreateDoctor(createUser(t, db, "dr_off", RoleDoctor, "Off", "").ID, f.other); err != nil {
		t.Fatalf("Failed to create doctor: %v", err)
	}

	f.patient = &Patient{BloodType: "A+"}
	if err := db.CreatePatient(createUser(t, db, "patient1", RolePatient, "Alice", "Johnson").ID, f.patient); err != nil {
		t.Fatalf("Failed to create patient: %v", err)
	}
	f.stranger = &Patient{}
	if err := db.CreatePatient(createUser(t, db, "patient2", RolePatient, "", "").ID, f.stranger); err != nil {
		t.Fatalf("Failed to create patient: %v", err)
	}

	f.appt = &Appointment{
		PatientID:       f.patient.ID,
		DoctorID:        f.doctor.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
		Reason:          "Regular checkup",
	}
	if err := db.CreateAppointment(f.appt); err != nil {
		t.Fatalf("Failed to create appointment: %v", err)
	}
	return f
}

func TestNewDBCreatesTables(t *testing.T) {
	db := newTestDB(t)
	for _, table := range []string{"users", "patients", "doctors", "admins", "appointments",
		"medical_records", "prescriptions", "symptom_checks", "auth_tokens"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check %s table: %v", table, err)
		}
		if count != 1 {
			t.Errorf("%s table not created", table)
		}
	}
}

func TestFullName(t *testing.T) {
	tests := []struct {
		first, last, username, want string
	}{
		{"John", "Smith", "dr_smith", "John Smith"},
		{"John", "", "dr_smith", "John"},
		{"", "Smith", "dr_smith", "Smith"},
		{"", "", "dr_smith", "dr_smith"},
	}
	for _, tc := range tests {
		if got := FullName(tc.first, tc.last, tc.username); got != tc.want {
			t.Errorf("FullName(%q, %q, %q) = %q, want %q", tc.first, tc.last, tc.username, got, tc.want)
		}
	}
}

func TestCreateUserConflict(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "dup", RolePatient, "", "")
	err := db.CreateUser(&User{Username: "dup", Role: RolePatient})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := db.CreateUser(&User{Username: "bad", Role: "nurse"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	db := newTestDB(t)
	u := createUser(t, db, "someone", RolePatient, "", "")
	name := "Some"
	dob := "1990-05-01"
	if err := db.UpdateUser(u.ID, UserUpdate{FirstName: &name, DateOfBirth: &dob}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err := db.GetUserByUsername("someone")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.FirstName != "Some" || got.DateOfBirth == nil || *got.DateOfBirth != dob {
		t.Fatalf("update not applied: %+v", got)
	}
	if err := db.DeleteUser(u.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := db.GetUser(u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.DeleteUser(u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestScopedUsers(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)

	all, err := db.ListUsers(Scope{Role: RoleAdmin, UserID: f.admin.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("admin expected 5 users, got %d", len(all))
	}

	seen, err := db.ListUsers(Scope{Role: RoleDoctor, UserID: f.doctor.User.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0].ID != f.patient.User.ID {
		t.Fatalf("doctor expected only own patient user, got %d users", len(seen))
	}

	self, err := db.ListUsers(Scope{Role: RolePatient, UserID: f.stranger.User.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(self) != 1 || self[0].ID != f.stranger.User.ID {
		t.Fatal("patient expected only self")
	}

	if _, err := db.GetUserScoped(Scope{Role: RolePatient, UserID: f.stranger.User.ID}, f.admin.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	none, err := db.ListUsers(Scope{Role: "nurse"})
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown role must see nothing, got %d (%v)", len(none), err)
	}
}

func TestScopedProfiles(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)

	patients, err := db.ListPatients(Scope{Role: RoleDoctor, UserID: f.doctor.User.ID}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(patients) != 1 || patients[0].ID != f.patient.ID {
		t.Fatalf("doctor expected one patient, got %d", len(patients))
	}
	if patients[0].User.FullName() != "Alice Johnson" {
		t.Fatalf("unexpected patient name %q", patients[0].User.FullName())
	}

	if _, err := db.GetPatientScoped(Scope{Role: RoleDoctor, UserID: f.doctor.User.ID}, f.stranger.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("doctor must not see unrelated patient, got %v", err)
	}

	available, err := db.ListDoctors(Scope{Role: RolePatient, UserID: f.patient.User.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 1 || available[0].ID != f.doctor.ID {
		t.Fatalf("patient expected only available doctors, got %d", len(available))
	}
	if f.other.Specialization != "general" {
		t.Fatalf("expected default specialization, got %q", f.other.Specialization)
	}

	own, err := db.ListDoctors(Scope{Role: RoleDoctor, UserID: f.other.User.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own[0].ID != f.other.ID {
		t.Fatal("doctor expected own profile only")
	}

	admins, err := db.ListAdmins(Scope{Role: RoleDoctor, UserID: f.doctor.User.ID})
	if err != nil || len(admins) != 0 {
		t.Fatalf("non-admin must not list admins, got %d (%v)", len(admins), err)
	}
	admins, err = db.ListAdmins(Scope{Role: RoleAdmin, UserID: f.admin.ID})
	if err != nil || len(admins) != 1 {
		t.Fatalf("admin expected one admin, got %d (%v)", len(admins), err)
	}
}

func TestAppointmentLifecycle(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)

	if f.appt.Status != StatusScheduled {
		t.Fatalf("expected default status scheduled, got %q", f.appt.Status)
	}
	if f.appt.PatientName != "Alice Johnson" || f.appt.DoctorName != "John Smith" {
		t.Fatalf("unexpected names %q / %q", f.appt.PatientName, f.appt.DoctorName)
	}

	later := &Appointment{
		PatientID:       f.patient.ID,
		DoctorID:        f.doctor.ID,
		AppointmentDate: time.Now().Add(72 * time.Hour),
		Reason:          "Follow-up",
	}
	if err := db.CreateAppointment(later); err != nil {
		t.Fatal(err)
	}
	list, err := db.ListAppointments(Scope{Role: RolePatient, UserID: f.patient.User.ID}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != later.ID {
		t.Fatal("appointments must be ordered by date descending")
	}

	if err := db.SetAppointmentStatus(f.appt.ID, StatusConfirmed); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetAppointment(f.appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %q", got.Status)
	}
	if err := db.SetAppointmentStatus(f.appt.ID, "lost"); err == nil {
		t.Fatal("expected invalid status error")
	}

	if _, err := db.GetAppointmentScoped(Scope{Role: RolePatient, UserID: f.stranger.User.ID}, f.appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger must not see appointment, got %v", err)
	}
	otherList, err := db.ListAppointments(Scope{Role: RoleDoctor, UserID: f.other.User.ID}, 0)
	if err != nil || len(otherList) != 0 {
		t.Fatalf("other doctor must see nothing, got %d (%v)", len(otherList), err)
	}

	bad := &Appointment{PatientID: 999, DoctorID: f.doctor.ID, AppointmentDate: time.Now(), Reason: "x"}
	if err := db.CreateAppointment(bad); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestMedicalRecordsAndPrescriptions(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)

	rec := &MedicalRecord{
		PatientID:     f.patient.ID,
		DoctorID:      f.doctor.ID,
		AppointmentID: &f.appt.ID,
		Diagnosis:     "Hypertension",
		Symptoms:      "headache",
		TreatmentPlan: "rest",
		VitalSigns:    json.RawMessage(`{"blood_pressure":"140/90","heart_rate":80}`),
	}
	if err := db.CreateMedicalRecord(rec); err != nil {
		t.Fatal(err)
	}
	var vitals map[string]interface{}
	if err := json.Unmarshal(rec.VitalSigns, &vitals); err != nil || vitals["blood_pressure"] != "140/90" {
		t.Fatalf("vital signs not stored: %s (%v)", rec.VitalSigns, err)
	}
	if err := db.CreateMedicalRecord(&MedicalRecord{PatientID: f.patient.ID, DoctorID: f.doctor.ID, VitalSigns: json.RawMessage(`[1]`)}); err == nil {
		t.Fatal("expected error for non-object vital signs")
	}

	active := &Prescription{PatientID: f.patient.ID, DoctorID: f.doctor.ID, MedicalRecordID: &rec.ID,
		MedicationName: "Lisinopril", Dosage: "10mg", Frequency: "Once daily", Duration: "30 days"}
	stopped := &Prescription{PatientID: f.patient.ID, DoctorID: f.doctor.ID,
		MedicationName: "Ibuprofen", Dosage: "400mg", Frequency: "As needed", Duration: "7 days"}
	for _, p := range []*Prescription{active, stopped} {
		if err := db.CreatePrescription(p); err != nil {
			t.Fatal(err)
		}
	}
	off := false
	if err := db.UpdatePrescription(stopped.ID, PrescriptionUpdate{IsActive: &off}); err != nil {
		t.Fatal(err)
	}

	dash, err := db.GetPatientDashboard(f.patient.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(dash.Appointments) != 1 || len(dash.MedicalRecords) != 1 {
		t.Fatalf("unexpected dashboard sizes: %d appointments, %d records", len(dash.Appointments), len(dash.MedicalRecords))
	}
	if len(dash.Prescriptions) != 1 || dash.Prescriptions[0].ID != active.ID {
		t.Fatal("dashboard must show active prescriptions only")
	}

	all, err := db.ListPrescriptions(Scope{Role: RoleDoctor, UserID: f.doctor.User.ID}, false, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("doctor expected 2 prescriptions, got %d (%v)", len(all), err)
	}
	if _, err := db.GetMedicalRecordScoped(Scope{Role: RoleDoctor, UserID: f.other.User.ID}, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other doctor must not see record, got %v", err)
	}

	if id, err := db.FirstMedicalRecordID(f.patient.ID, f.doctor.ID); err != nil || id == nil || *id != rec.ID {
		t.Fatalf("FirstMedicalRecordID = %v, %v", id, err)
	}
	if id, err := db.FirstAppointmentID(f.patient.ID, f.other.ID); err != nil || id != nil {
		t.Fatalf("expected no appointment with other doctor, got %v, %v", id, err)
	}
}

func TestSymptomChecksScope(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)

	own := &SymptomCheck{
		PatientID:           &f.patient.ID,
		Symptoms:            "fever cough",
		PredictedConditions: []string{"flu"},
		ConfidenceScores:    map[string]float64{"flu": 0.75},
		Recommendations:     "Rest",
	}
	anon := &SymptomCheck{Symptoms: "rash"}
	for _, c := range []*SymptomCheck{own, anon} {
		if err := db.CreateSymptomCheck(c); err != nil {
			t.Fatal(err)
		}
	}

	adminList, err := db.ListSymptomChecks(Scope{Role: RoleAdmin, UserID: f.admin.ID})
	if err != nil || len(adminList) != 2 {
		t.Fatalf("admin expected 2 checks, got %d (%v)", len(adminList), err)
	}
	doctorList, err := db.ListSymptomChecks(Scope{Role: RoleDoctor, UserID: f.doctor.User.ID})
	if err != nil || len(doctorList) != 1 {
		t.Fatalf("doctor expected 1 check, got %d (%v)", len(doctorList), err)
	}
	if doctorList[0].ConfidenceScores["flu"] != 0.75 {
		t.Fatalf("scores not restored: %v", doctorList[0].ConfidenceScores)
	}
	strangerList, err := db.ListSymptomChecks(Scope{Role: RolePatient, UserID: f.stranger.User.ID})
	if err != nil || len(strangerList) != 0 {
		t.Fatalf("stranger expected no checks, got %d (%v)", len(strangerList), err)
	}
	if anon.PredictedConditions == nil {
		t.Fatal("empty conditions must be stored as a list")
	}
}

func TestTokensAndDashboards(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)

	now := time.Now()
	live := &AuthToken{Token: "live", UserID: f.admin.ID, Kind: TokenAccess, ExpiresAt: now.Add(time.Hour)}
	dead := &AuthToken{Token: "dead", UserID: f.admin.ID, Kind: TokenRefresh, ExpiresAt: now.Add(-time.Hour)}
	for _, tok := range []*AuthToken{live, dead} {
		if err := db.SaveToken(tok); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.GetToken("live", TokenRefresh); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token kind must match, got %v", err)
	}
	purged, err := db.PurgeExpiredTokens(now)
	if err != nil || purged != 1 {
		t.Fatalf("expected 1 purged token, got %d (%v)", purged, err)
	}
	if _, err := db.GetToken("live", TokenAccess); err != nil {
		t.Fatalf("live token lost: %v", err)
	}
	if err := db.DeleteUserTokens(f.admin.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetToken("live", TokenAccess); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user tokens must be revoked, got %v", err)
	}

	totals, err := db.GetAdminTotals()
	if err != nil {
		t.Fatal(err)
	}
	if totals.TotalUsers != 5 || totals.TotalDoctors != 2 || totals.TotalPatients != 2 || totals.TotalAppointments != 1 {
		t.Fatalf("unexpected totals %+v", totals)
	}

	dd, err := db.GetDoctorDashboard(f.doctor.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(dd.Appointments) != 1 || len(dd.Patients) != 1 {
		t.Fatalf("unexpected doctor dashboard %+v", dd)
	}
}
