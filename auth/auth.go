// Package auth регистрация, вход и проверка токенов доступа.
package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smarthms/database"
)

var (
	// ErrInvalidCredentials неверный логин или пароль
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser учетная запись отключена
	ErrInactiveUser = errors.New("user account is disabled")
	// ErrInvalidToken токен не найден или не того вида
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired срок действия токена истек
	ErrTokenExpired = errors.New("token expired")
)

// MinPasswordLength минимальная длина пароля
const MinPasswordLength = 8

// Значения по умолчанию для времени жизни токенов
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ValidationError ошибки проверки полей регистрации
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range sortedKeys(e.Fields) {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RegisterRequest данные регистрации
type RegisterRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Role            string  `json:"role"`
	PhoneNumber     string  `json:"phone_number"`
	Address         string  `json:"address"`
	DateOfBirth     *string `json:"date_of_birth"`
}

// Tokens пара выданных токенов
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Service сервис аутентификации
type Service struct {
	db         *database.DB
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService создает сервис; нулевые TTL заменяются значениями по умолчанию
func NewService(db *database.DB, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Service{db: db, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// ValidatePassword проверяет длину и то, что пароль не состоит только из цифр
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return errors.New("password cannot be entirely numeric")
	}
	return nil
}

func (req *RegisterRequest) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = "This field is required."
	}
	if req.Password != req.PasswordConfirm {
		fields["password"] = "Passwords don't match."
	} else if err := ValidatePassword(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	if req.Role == "" {
		req.Role = database.RolePatient
	}
	if !database.ValidRole(req.Role) {
		fields["role"] = fmt.Sprintf("%q is not a valid choice.", req.Role)
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", *req.DateOfBirth); err != nil {
			fields["date_of_birth"] = "Date has wrong format. Use YYYY-MM-DD."
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// HashPassword возвращает bcrypt-хеш пароля
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Register создает пользователя и профиль его роли
func (s *Service) Register(req RegisterRequest) (*database.User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &database.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		PhoneNumber:  req.PhoneNumber,
		Address:      req.Address,
		DateOfBirth:  req.DateOfBirth,
	}
	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}
	if err := CreateRoleProfile(s.db, user); err != nil {
		// Пользователь без профиля бесполезен
		if delErr := s.db.DeleteUser(user.ID); delErr != nil {
			return nil, fmt.Errorf("%w (cleanup failed: %v)", err, delErr)
		}
		return nil, err
	}
	return user, nil
}

// CreateRoleProfile создает профиль по роли пользователя
func CreateRoleProfile(db *database.DB, user *database.User) error {
	switch user.Role {
	case database.RolePatient:
		return db.CreatePatient(user.ID, &database.Patient{})
	case database.RoleDoctor:
		return db.CreateDoctor(user.ID, &database.Doctor{
			Specialization: "general",
			LicenseNumber:  fmt.Sprintf("DOC%06d", user.ID),
			IsAvailable:    true,
		})
	case database.RoleAdmin:
		return db.CreateAdmin(user.ID, &database.Admin{
			Department: "Administration",
			EmployeeID: fmt.Sprintf("ADM%06d", user.ID),
		})
	}
	return fmt.Errorf("invalid role %q", user.Role)
}

// Login проверяет пароль и выдает пару токенов
func (s *Service) Login(username, password string) (*database.User, *Tokens, error) {
	user, err := s.db.GetUserByUsername(username)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	tokens, err := s.IssueTokens(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// IssueTokens выдает пару токенов пользователю
func (s *Service) IssueTokens(userID int) (*Tokens, error) {
	access, err := s.issue(userID, database.TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issue(userID, database.TokenRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Tokens{Access: access, Refresh: refresh}, nil
}

// Refresh выдает новый токен доступа по refresh-токену
func (s *Service) Refresh(refreshToken string) (*Tokens, error) {
	tok, err := s.lookup(refreshToken, database.TokenRefresh)
	if err != nil {
		return nil, err
	}
	access, err := s.issue(tok.UserID, database.TokenAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &Tokens{Access: access}, nil
}

// Authenticate возвращает пользователя по токену доступа
func (s *Service) Authenticate(accessToken string) (*database.User, error) {
	tok, err := s.lookup(accessToken, database.TokenAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.db.GetUser(tok.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// ChangePassword проверяет текущий пароль, сохраняет новый и отзывает
// все выданные токены; возвращает свежую пару
func (s *Service) ChangePassword(user *database.User, oldPassword, newPassword string) (*Tokens, error) {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return nil, ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"new_password": err.Error()}}
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.db.SetPassword(user.ID, hash); err != nil {
		return nil, err
	}
	if err := s.db.DeleteUserTokens(user.ID); err != nil {
		return nil, err
	}
	return s.IssueTokens(user.ID)
}

// Logout отзывает токен
func (s *Service) Logout(token string) error {
	return s.db.DeleteToken(token)
}

func (s *Service) issue(userID int, kind string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	err := s.db.SaveToken(&database.AuthToken{
		Token:     token,
		UserID:    userID,
		Kind:      kind,
		ExpiresAt: s.now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) lookup(token, kind string) (*database.AuthToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	tok, err := s.db.GetToken(token, kind)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(tok.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
