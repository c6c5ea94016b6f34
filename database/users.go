package database

import (
	"database/sql"
	"fmt"
	"time"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name,
	u.role, u.phone_number, u.address, u.date_of_birth, u.is_active, u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var dob sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.PhoneNumber, &u.Address, &dob, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.DateOfBirth = ptrString(dob)
	return u, nil
}

// UserUpdate частичное обновление пользователя, nil поля не меняются
type UserUpdate struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
	DateOfBirth *string `json:"date_of_birth"`
	IsActive    *bool   `json:"is_active"`
}

// CreateUser создает пользователя и заполняет ID и временные метки
func (db *DB) CreateUser(u *User) error {
	if u.Role == "" {
		u.Role = RolePatient
	}
	if !ValidRole(u.Role) {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO users (username, email, password_hash, first_name, last_name, role,
			phone_number, address, date_of_birth, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role,
		u.PhoneNumber, u.Address, nullableString(u.DateOfBirth), now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = int(id)
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetUser возвращает пользователя по ID без ограничения видимости
func (db *DB) GetUser(id int) (*User, error) {
	u, err := scanUser(db.conn.QueryRow(`SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по логину
func (db *DB) GetUserByUsername(username string) (*User, error) {
	u, err := scanUser(db.conn.QueryRow(`SELECT `+userColumns+` FROM users u WHERE u.username = ?`, username))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// ListUsers возвращает пользователей, видимых вызывающему
func (db *DB) ListUsers(scope Scope) ([]*User, error) {
	where, args := usersFilter(scope)
	return db.queryUsers(`SELECT `+userColumns+` FROM users u WHERE `+where+` ORDER BY u.id`, args...)
}

// GetUserScoped возвращает пользователя, если он виден вызывающему
func (db *DB) GetUserScoped(scope Scope, id int) (*User, error) {
	where, args := usersFilter(scope)
	u, err := scanUser(db.conn.QueryRow(`SELECT `+userColumns+` FROM users u WHERE u.id = ? AND `+where,
		append([]interface{}{id}, args...)...))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (db *DB) queryUsers(query string, args ...interface{}) ([]*User, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser применяет частичное обновление
func (db *DB) UpdateUser(id int, upd UserUpdate) error {
	var set updateSet
	if upd.Email != nil {
		set.add("email", *upd.Email)
	}
	if upd.FirstName != nil {
		set.add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		set.add("last_name", *upd.LastName)
	}
	if upd.PhoneNumber != nil {
		set.add("phone_number", *upd.PhoneNumber)
	}
	if upd.Address != nil {
		set.add("address", *upd.Address)
	}
	if upd.DateOfBirth != nil {
		set.add("date_of_birth", nullableString(upd.DateOfBirth))
	}
	if upd.IsActive != nil {
		set.add("is_active", *upd.IsActive)
	}
	if set.empty() {
		return nil
	}
	set.add("updated_at", time.Now().UTC())
	return set.exec(db.conn, "users", id)
}

// SetPassword сохраняет новый хеш пароля
func (db *DB) SetPassword(id int, hash string) error {
	var set updateSet
	set.add("password_hash", hash)
	set.add("updated_at", time.Now().UTC())
	return set.exec(db.conn, "users", id)
}

// DeleteUser удаляет пользователя вместе с профилем
func (db *DB) DeleteUser(id int) error {
	return deleteByID(db.conn, "users", id)
}

// CountUsers общее число пользователей
func (db *DB) CountUsers() (int, error) {
	return db.count(`SELECT COUNT(*) FROM users`)
}

func (db *DB) count(query string, args ...interface{}) (int, error) {
	var n int
	if err := db.conn.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
