package database

// DashboardLimit число последних элементов в списках панели
const DashboardLimit = 5

// AdminTotals сводные счетчики для администратора
type AdminTotals struct {
	TotalPatients     int `json:"total_patients"`
	TotalDoctors      int `json:"total_doctors"`
	TotalAppointments int `json:"total_appointments"`
	TotalUsers        int `json:"total_users"`
}

// PatientDashboard данные панели пациента
type PatientDashboard struct {
	Appointments   []*Appointment   `json:"appointments"`
	Prescriptions  []*Prescription  `json:"prescriptions"`
	MedicalRecords []*MedicalRecord `json:"medical_records"`
}

// DoctorDashboard данные панели врача
type DoctorDashboard struct {
	Appointments []*Appointment `json:"appointments"`
	Patients     []*Patient     `json:"patients"`
}

// GetAdminTotals считает пациентов, врачей, записи и пользователей
func (db *DB) GetAdminTotals() (*AdminTotals, error) {
	var t AdminTotals
	var err error
	if t.TotalPatients, err = db.CountPatients(); err != nil {
		return nil, err
	}
	if t.TotalDoctors, err = db.CountDoctors(); err != nil {
		return nil, err
	}
	if t.TotalAppointments, err = db.CountAppointments(); err != nil {
		return nil, err
	}
	if t.TotalUsers, err = db.CountUsers(); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetPatientDashboard последние записи, активные назначения и медкарты пациента
func (db *DB) GetPatientDashboard(userID int) (*PatientDashboard, error) {
	scope := Scope{Role: RolePatient, UserID: userID}
	var d PatientDashboard
	var err error
	if d.Appointments, err = db.ListAppointments(scope, DashboardLimit); err != nil {
		return nil, err
	}
	if d.Prescriptions, err = db.ListPrescriptions(scope, true, DashboardLimit); err != nil {
		return nil, err
	}
	if d.MedicalRecords, err = db.ListMedicalRecords(scope, DashboardLimit); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDoctorDashboard последние записи и пациенты врача
func (db *DB) GetDoctorDashboard(userID int) (*DoctorDashboard, error) {
	scope := Scope{Role: RoleDoctor, UserID: userID}
	var d DoctorDashboard
	var err error
	if d.Appointments, err = db.ListAppointments(scope, DashboardLimit); err != nil {
		return nil, err
	}
	if d.Patients, err = db.ListPatients(scope, DashboardLimit); err != nil {
		return nil, err
	}
	return &d, nil
}
