package database

// Фильтры выборок по роли вызывающего. Каждая функция возвращает условие WHERE
// и его аргументы; для неизвестной роли выборка пуста.

const noRows = "0 = 1"

// doctorPatientsSubquery пациенты, у которых есть записи к врачу с данным user_id
const doctorPatientsSubquery = `SELECT a.patient_id FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id WHERE d.user_id = ?`

func usersFilter(s Scope) (string, []interface{}) {
	switch s.Role {
	case RoleAdmin:
		return "1 = 1", nil
	case RoleDoctor:
		return "u.id IN (SELECT p.user_id FROM patients p WHERE p.id IN (" + doctorPatientsSubquery + "))", []interface{}{s.UserID}
	case RolePatient:
		return "u.id = ?", []interface{}{s.UserID}
	}
	return noRows, nil
}

func patientsFilter(s Scope) (string, []interface{}) {
	switch s.Role {
	case RoleAdmin:
		return "1 = 1", nil
	case RoleDoctor:
		return "pt.id IN (" + doctorPatientsSubquery + ")", []interface{}{s.UserID}
	case RolePatient:
		return "pt.user_id = ?", []interface{}{s.UserID}
	}
	return noRows, nil
}

func doctorsFilter(s Scope) (string, []interface{}) {
	switch s.Role {
	case RoleAdmin:
		return "1 = 1", nil
	case RoleDoctor:
		return "d.user_id = ?", []interface{}{s.UserID}
	case RolePatient:
		return "d.is_available = 1", nil
	}
	return noRows, nil
}

func adminsFilter(s Scope) (string, []interface{}) {
	if s.Role == RoleAdmin {
		return "1 = 1", nil
	}
	return noRows, nil
}

// ownedFilter для записей, приемов и назначений: таблица соединена с
// patients (алиас p) и doctors (алиас d)
func ownedFilter(s Scope) (string, []interface{}) {
	switch s.Role {
	case RoleAdmin:
		return "1 = 1", nil
	case RoleDoctor:
		return "d.user_id = ?", []interface{}{s.UserID}
	case RolePatient:
		return "p.user_id = ?", []interface{}{s.UserID}
	}
	return noRows, nil
}

func symptomChecksFilter(s Scope) (string, []interface{}) {
	switch s.Role {
	case RoleAdmin:
		return "1 = 1", nil
	case RoleDoctor:
		return "sc.patient_id IN (" + doctorPatientsSubquery + ")", []interface{}{s.UserID}
	case RolePatient:
		return "sc.patient_id IN (SELECT id FROM patients WHERE user_id = ?)", []interface{}{s.UserID}
	}
	return noRows, nil
}
