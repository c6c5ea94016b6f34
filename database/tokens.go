package database

import (
	"fmt"
	"time"
)

// Виды токенов
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// AuthToken выданный токен
type AuthToken struct {
	Token     string
	UserID    int
	Kind      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SaveToken сохраняет выданный токен
func (db *DB) SaveToken(t *AuthToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`INSERT INTO auth_tokens (token, user_id, kind, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.Token, t.UserID, t.Kind, t.ExpiresAt.UTC(), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", mapError(err))
	}
	return nil
}

// GetToken возвращает токен заданного вида
func (db *DB) GetToken(token, kind string) (*AuthToken, error) {
	t := &AuthToken{}
	err := db.conn.QueryRow(`SELECT token, user_id, kind, expires_at, created_at FROM auth_tokens
		WHERE token = ? AND kind = ?`, token, kind).Scan(&t.Token, &t.UserID, &t.Kind, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// DeleteToken отзывает токен
func (db *DB) DeleteToken(token string) error {
	_, err := db.conn.Exec(`DELETE FROM auth_tokens WHERE token = ?`, token)
	return err
}

// DeleteUserTokens отзывает все токены пользователя
func (db *DB) DeleteUserTokens(userID int) error {
	_, err := db.conn.Exec(`DELETE FROM auth_tokens WHERE user_id = ?`, userID)
	return err
}

// PurgeExpiredTokens удаляет просроченные токены и возвращает их число
func (db *DB) PurgeExpiredTokens(now time.Time) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM auth_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge tokens: %w", err)
	}
	return res.RowsAffected()
}
