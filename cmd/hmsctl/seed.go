package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"smarthms/auth"
	"smarthms/database"
)

var seedRandom int64

func init() {
	seedCmd.Flags().Int64Var(&seedRandom, "random-seed", 1, "seed for the generated sample data")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with sample users and clinical data",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		summary, err := seed(db, rand.New(rand.NewSource(seedRandom)), out)
		if err != nil {
			return err
		}
		successColor.Fprintln(out, "Successfully seeded database with sample data!")
		fmt.Fprintf(out, "Created %d users, %d appointments, %d medical records, %d prescriptions\n",
			summary.Users, summary.Appointments, summary.Records, summary.Prescriptions)
		fmt.Fprintln(out, "Sample users:")
		fmt.Fprintln(out, "  Admin: admin / admin123")
		fmt.Fprintln(out, "  Doctors: dr_smith, dr_johnson, dr_williams, dr_brown, dr_davis / doctor123")
		fmt.Fprintln(out, "  Patients: patient1 ... patient12 / patient123")
		return nil
	},
}

type seedDoctor struct {
	username, email, first, last string
	specialization, license      string
	experience                   int
	fee                          float64
}

var sampleDoctors = []seedDoctor{
	{"dr_smith", "dr.smith@hospital.com", "John", "Smith", "cardiology", "DOC000001", 15, 150},
	{"dr_johnson", "dr.johnson@hospital.com", "Sarah", "Johnson", "neurology", "DOC000002", 12, 200},
	{"dr_williams", "dr.williams@hospital.com", "Michael", "Williams", "orthopedics", "DOC000003", 10, 180},
	{"dr_brown", "dr.brown@hospital.com", "Emily", "Brown", "pediatrics", "DOC000004", 8, 120},
	{"dr_davis", "dr.davis@hospital.com", "Robert", "Davis", "general", "DOC000005", 20, 100},
}

type seedPatient struct {
	first, last, bloodType, allergies string
}

var samplePatients = []seedPatient{
	{"Alice", "Johnson", "A+", "Penicillin"},
	{"Bob", "Smith", "B+", "None"},
	{"Carol", "Davis", "O+", "Shellfish"},
	{"David", "Wilson", "AB+", "Latex"},
	{"Eva", "Brown", "A-", "Aspirin"},
	{"Frank", "Miller", "B-", "None"},
	{"Grace", "Taylor", "O-", "Peanuts"},
	{"Henry", "Anderson", "AB-", "None"},
	{"Ivy", "Thomas", "A+", "Dust"},
	{"Jack", "Jackson", "B+", "None"},
	{"Kate", "White", "O+", "Cats"},
	{"Liam", "Harris", "A-", "None"},
}

var (
	appointmentReasons = []string{
		"Routine checkup", "Chest pain", "Headache", "Annual physical",
		"Follow-up visit", "Vaccination", "Blood pressure check", "Diabetes management",
	}
	diagnoses = []string{
		"Hypertension", "Diabetes Type 2", "Common Cold", "Migraine",
		"Arthritis", "Asthma", "Depression", "Anxiety",
	}
	symptomSamples = []string{
		"fever headache fatigue", "chest pain shortness of breath", "nausea vomiting",
		"joint pain swelling", "rash itching", "dizziness confusion",
		"abdominal pain bloating", "back pain stiffness",
	}
	medications = []string{
		"Metformin 500mg", "Lisinopril 10mg", "Ibuprofen 400mg", "Amoxicillin 500mg",
		"Paracetamol 500mg", "Omeprazole 20mg", "Atorvastatin 20mg", "Metoprolol 50mg",
	}
)

const (
	sampleAppointments  = 2
	sampleRecords       = 15
	samplePrescriptions = 10
)

type seedSummary struct {
	Users         int
	Appointments  int
	Records       int
	Prescriptions int
}

// seed создает демонстрационные данные. Пользователи ищутся по логину,
// клинические данные создаются только в пустой базе.
func seed(db *database.DB, rng *rand.Rand, out io.Writer) (seedSummary, error) {
	var summary seedSummary

	admin, created, err := ensureUser(db, &database.User{
		Username: "admin", Email: "admin@hospital.com",
		FirstName: "Hospital", LastName: "Administrator", Role: database.RoleAdmin,
	}, "admin123")
	if err != nil {
		return summary, err
	}
	if created {
		summary.Users++
		if err := db.CreateAdmin(admin.ID, &database.Admin{Department: "Administration", EmployeeID: "ADM000001"}); err != nil {
			return summary, fmt.Errorf("admin profile: %w", err)
		}
		fmt.Fprintln(out, "Created admin user")
	}

	doctors := make([]*database.Doctor, 0, len(sampleDoctors))
	for _, d := range sampleDoctors {
		user, created, err := ensureUser(db, &database.User{
			Username: d.username, Email: d.email, FirstName: d.first, LastName: d.last,
			Role: database.RoleDoctor, PhoneNumber: fmt.Sprintf("555-%04d", 1000+rng.Intn(9000)),
		}, "doctor123")
		if err != nil {
			return summary, err
		}
		if created {
			summary.Users++
			err = db.CreateDoctor(user.ID, &database.Doctor{
				Specialization:  d.specialization,
				LicenseNumber:   d.license,
				ExperienceYears: d.experience,
				ConsultationFee: d.fee,
				IsAvailable:     true,
			})
			if err != nil {
				return summary, fmt.Errorf("doctor profile %s: %w", d.username, err)
			}
			fmt.Fprintf(out, "Created doctor: Dr. %s\n", user.FullName())
		}
		doctor, err := db.GetDoctorByUserID(user.ID)
		if err != nil {
			return summary, fmt.Errorf("doctor profile %s: %w", d.username, err)
		}
		doctors = append(doctors, doctor)
	}

	patients := make([]*database.Patient, 0, len(samplePatients))
	for i, p := range samplePatients {
		n := i + 1
		user, created, err := ensureUser(db, &database.User{
			Username: fmt.Sprintf("patient%d", n), Email: fmt.Sprintf("patient%d@email.com", n),
			FirstName: p.first, LastName: p.last, Role: database.RolePatient,
			PhoneNumber: fmt.Sprintf("555-%04d", 1000+n),
		}, "patient123")
		if err != nil {
			return summary, err
		}
		if created {
			summary.Users++
			err = db.CreatePatient(user.ID, &database.Patient{
				BloodType:        p.bloodType,
				Allergies:        p.allergies,
				EmergencyContact: "Emergency Contact for " + p.first,
				EmergencyPhone:   fmt.Sprintf("555-%04d", 2000+rng.Intn(1000)),
				MedicalInsurance: "Health Insurance Co.",
			})
			if err != nil {
				return summary, fmt.Errorf("patient profile %s: %w", user.Username, err)
			}
			fmt.Fprintf(out, "Created patient: %s\n", user.FullName())
		}
		patient, err := db.GetPatientByUserID(user.ID)
		if err != nil {
			return summary, fmt.Errorf("patient profile %s: %w", user.Username, err)
		}
		patients = append(patients, patient)
	}

	existing, err := db.CountAppointments()
	if err != nil {
		return summary, err
	}
	if existing > 0 {
		fmt.Fprintln(out, "Clinical data already present, skipping appointments, records and prescriptions")
		return summary, nil
	}

	pick := func() (*database.Patient, *database.Doctor) {
		return patients[rng.Intn(len(patients))], doctors[rng.Intn(len(doctors))]
	}
	statuses := []string{database.StatusScheduled, database.StatusConfirmed}

	for i := 0; i < sampleAppointments; i++ {
		patient, doctor := pick()
		appt := &database.Appointment{
			PatientID:       patient.ID,
			DoctorID:        doctor.ID,
			AppointmentDate: time.Now().Add(time.Duration(rng.Intn(15)-7) * 24 * time.Hour),
			Status:          statuses[rng.Intn(len(statuses))],
			Reason:          appointmentReasons[rng.Intn(len(appointmentReasons))],
			Notes:           "Appointment notes for " + patient.User.FullName(),
		}
		if err := db.CreateAppointment(appt); err != nil {
			return summary, err
		}
		summary.Appointments++
		fmt.Fprintf(out, "Created appointment: %s with %s on %s\n",
			appt.PatientName, appt.DoctorName, appt.AppointmentDate.Format("2006-01-02"))
	}

	for i := 0; i < sampleRecords; i++ {
		patient, doctor := pick()
		apptID, err := db.FirstAppointmentID(patient.ID, doctor.ID)
		if err != nil {
			return summary, err
		}
		vitals, err := json.Marshal(map[string]interface{}{
			"blood_pressure": fmt.Sprintf("%d/%d", 110+rng.Intn(31), 70+rng.Intn(21)),
			"heart_rate":     60 + rng.Intn(41),
			"temperature":    float64(980+rng.Intn(21)) / 10,
			"weight":         120 + rng.Intn(81),
		})
		if err != nil {
			return summary, err
		}
		record := &database.MedicalRecord{
			PatientID:     patient.ID,
			DoctorID:      doctor.ID,
			AppointmentID: apptID,
			Diagnosis:     diagnoses[rng.Intn(len(diagnoses))],
			Symptoms:      symptomSamples[rng.Intn(len(symptomSamples))],
			TreatmentPlan: "Treatment plan for " + diagnoses[rng.Intn(len(diagnoses))],
			VitalSigns:    vitals,
		}
		if err := db.CreateMedicalRecord(record); err != nil {
			return summary, err
		}
		summary.Records++
	}
	fmt.Fprintf(out, "Created %d medical records\n", summary.Records)

	for i := 0; i < samplePrescriptions; i++ {
		patient, doctor := pick()
		recordID, err := db.FirstMedicalRecordID(patient.ID, doctor.ID)
		if err != nil {
			return summary, err
		}
		prescription := &database.Prescription{
			PatientID:       patient.ID,
			DoctorID:        doctor.ID,
			MedicalRecordID: recordID,
			MedicationName:  medications[rng.Intn(len(medications))],
			Dosage:          "1 tablet",
			Frequency:       "twice daily",
			Duration:        "7 days",
			Instructions:    "Take with food",
		}
		if err := db.CreatePrescription(prescription); err != nil {
			return summary, err
		}
		summary.Prescriptions++
	}
	fmt.Fprintf(out, "Created %d prescriptions\n", summary.Prescriptions)

	return summary, nil
}

// ensureUser возвращает существующего пользователя или создает нового с паролем
func ensureUser(db *database.DB, u *database.User, password string) (*database.User, bool, error) {
	existing, err := db.GetUserByUsername(u.Username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}
	if u.PasswordHash, err = auth.HashPassword(password); err != nil {
		return nil, false, err
	}
	if err := db.CreateUser(u); err != nil {
		return nil, false, fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return u, true, nil
}
