package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound запись не найдена или недоступна вызывающему
	ErrNotFound = errors.New("not found")
	// ErrConflict нарушение уникальности
	ErrConflict = errors.New("already exists")
	// ErrInvalidReference ссылка на несуществующую запись
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// DBConfig конфигурация подключения к базе данных
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB обертка для работы с базой данных
type DB struct {
	conn *sql.DB
}

// NewDB создает новое подключение к базе данных
func NewDB(dbPath string) (*DB, error) {
	return NewDBWithConfig(dbPath, DBConfig{})
}

// NewDBWithConfig создает новое подключение к базе данных с конфигурацией
func NewDBWithConfig(dbPath string, config DBConfig) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory база живет в одном соединении
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		// Настройка connection pooling
		if config.MaxOpenConns > 0 {
			conn.SetMaxOpenConns(config.MaxOpenConns)
		} else {
			conn.SetMaxOpenConns(25) // Значение по умолчанию
		}

		if config.MaxIdleConns > 0 {
			conn.SetMaxIdleConns(config.MaxIdleConns)
		} else {
			conn.SetMaxIdleConns(5) // Значение по умолчанию
		}

		if config.ConnMaxLifetime > 0 {
			conn.SetConnMaxLifetime(config.ConnMaxLifetime)
		} else {
			conn.SetConnMaxLifetime(5 * time.Minute) // Значение по умолчанию
		}
	}

	// Проверяем подключение
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Инициализируем схему
	if err := InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// dsn включает внешние ключи и ожидание блокировок
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Close закрывает подключение к базе данных
func (db *DB) Close() error {
	return db.conn.Close()
}

// QueryRow выполняет запрос, возвращающий одну строку
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Ping проверяет доступность базы
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// mapError приводит ошибки драйвера к ошибкам пакета
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
	}
	return err
}

// updateSet накапливает пары "колонка = ?" для частичного обновления
type updateSet struct {
	columns []string
	args    []interface{}
}

func (u *updateSet) add(column string, value interface{}) {
	u.columns = append(u.columns, column+" = ?")
	u.args = append(u.args, value)
}

func (u *updateSet) empty() bool {
	return len(u.columns) == 0
}

// exec выполняет UPDATE table SET ... WHERE id = ?
func (u *updateSet) exec(conn *sql.DB, table string, id int) error {
	if u.empty() {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(u.columns, ", "))
	res, err := conn.Exec(query, append(u.args, id)...)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteByID удаляет запись по ID
func deleteByID(conn *sql.DB, table string, id int) error {
	res, err := conn.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func ptrString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

// limitClause добавляет LIMIT при положительном значении
func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// nullableString пустая строка сохраняется как NULL
func nullableString(v *string) interface{} {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// firstID возвращает ID из первой строки запроса или nil
func (db *DB) firstID(query string, args ...interface{}) (*int, error) {
	var id int
	err := db.conn.QueryRow(query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
