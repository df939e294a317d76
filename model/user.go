package model

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/biter777/countries"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ===== Utilities =====

// NormalizeEmail lowercases and trims the email string
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeUsername lowercases and trims the username string
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

var (
	ErrInvalidPassword     = fmt.Errorf("invalid password")
	ErrInvalidUsername     = fmt.Errorf("invalid username")
	ErrInvalidCountry      = fmt.Errorf("invalid country")
	ErrTokenExpired        = fmt.Errorf("token expired")
	ErrTokenInvalid        = fmt.Errorf("token invalid")
	ErrSignupTokenUsed     = fmt.Errorf("signup token already used")
	ErrSignupTokenNotFound = fmt.Errorf("signup token not found")
	ErrTokenNotFound       = fmt.Errorf("token not found")
	ErrTokenDisabled       = fmt.Errorf("token disabled")
	ErrUnauthorized        = fmt.Errorf("unauthorized")
)

// ===== User =====

// User is a local broadcasting account. Remote actors can follow it,
// it follows nobody (the one-way model of the product).
type User struct {
	gorm.Model
	Email               string `gorm:"uniqueIndex;not null"` // always stored lowercase
	Username            string `gorm:"uniqueIndex;not null"` // always stored lowercase
	DisplayName         string
	Bio                 string
	Website             string
	CountryCode         string // ISO alpha-2, validated on save
	Password            string `gorm:"not null"`
	PasswordResetToken  []byte
	PasswordResetExpiry time.Time
	Verified            bool `gorm:"not null;default:false"`
	LastLoginAt         *time.Time
}

// Normalize email and username before saving
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	u.Username = NormalizeUsername(u.Username)
	return nil
}

// ActorURI returns the ActivityPub-style identity of the user, derived
// from the configured base URL. Stored nowhere; the username is the
// stable part.
func (s *Store) ActorURI(u *User) string {
	return strings.TrimRight(s.Config.BaseURL, "/") + "/users/" + u.Username
}

// ValidateUsername checks the allowed username shape (after normalization).
func ValidateUsername(name string) error {
	if !usernameRe.MatchString(NormalizeUsername(name)) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateCountryCode accepts the empty string or a known ISO country.
func ValidateCountryCode(code string) error {
	if code == "" {
		return nil
	}
	// ByName maps the user-assigned "XX" to None, not Unknown
	if c := countries.ByName(code); c == countries.Unknown || c == countries.None {
		return ErrInvalidCountry
	}
	return nil
}

func (s *Store) TouchLastLogin(u *User) error {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return s.db.Model(u).Update("last_login_at", now).Error
}

// ===== Pending Signup (separate table) =====
// Holds pending signups until the email is confirmed. The password
// hash is stored at signup time so we never keep the plaintext around.
type SignupToken struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Email      string    `gorm:"index;not null"`       // lowercase
	Username   string    `gorm:"not null"`             // lowercase
	TokenHash  []byte    `gorm:"not null;uniqueIndex"` // sha256(token)
	ExpiresAt  time.Time `gorm:"not null"`
	ConsumedAt sql.NullTime

	PasswordHash string `gorm:"not null"`
}

// Normalize email before saving
func (t *SignupToken) BeforeSave(tx *gorm.DB) error {
	t.Email = NormalizeEmail(t.Email)
	t.Username = NormalizeUsername(t.Username)
	return nil
}

// ---- User Authentication / Password ----

func (s *Store) AuthenticateUser(email, password string) (*User, error) {
	email = NormalizeEmail(email)
	user, err := s.GetUserByEMail(email)
	if err != nil {
		return nil, err
	}
	if !s.CheckPassword(user, password) {
		return nil, ErrInvalidPassword
	}
	return user, nil
}

func (s *Store) GetUserByID(id any) (*User, error) {
	var user User
	if id == nil {
		return nil, fmt.Errorf("user ID cannot be nil")
	}
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(name string) (*User, error) {
	var user User
	if err := s.db.Where("username = ?", NormalizeUsername(name)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) SetPassword(u *User, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (s *Store) CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (s *Store) GetUserByEMail(email string) (*User, error) {
	email = NormalizeEmail(email)
	var user User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(u *User) error {
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := ValidateCountryCode(u.CountryCode); err != nil {
		return err
	}
	// Email normalized by hook
	return s.db.Create(u).Error
}

func (s *Store) UpdateUser(u *User) error {
	if err := ValidateCountryCode(u.CountryCode); err != nil {
		return err
	}
	return s.db.Save(u).Error
}

// ListUsers returns a page of users filtered by query `q` (matches email,
// username or display name, case-insensitive) plus the total count.
func (s *Store) ListUsers(q string, offset, limit int) ([]User, int64, error) {
	var (
		users []User
		total int64
	)

	db := s.db.Model(&User{})

	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(email) LIKE ? OR username LIKE ? OR LOWER(display_name) LIKE ?", like, like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ---- Password Reset ----

// Store hash of the plaintext token + expiry
func (s *Store) SetPasswordResetToken(u *User, token string, expiry time.Time) error {
	sum := sha256.Sum256([]byte(token))
	u.PasswordResetToken = sum[:]
	u.PasswordResetExpiry = expiry
	return s.db.Save(u).Error
}

// Find user by plaintext token; validates expiry + constant-time compare
func (s *Store) GetUserByResetToken(token string) (*User, error) {
	sum := sha256.Sum256([]byte(token))
	var u User

	if err := s.db.
		Where("password_reset_token = ?", sum[:]).
		First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if time.Now().After(u.PasswordResetExpiry) {
		return nil, ErrTokenExpired
	}
	if !hmac.Equal(u.PasswordResetToken, sum[:]) {
		return nil, ErrTokenInvalid
	}
	return &u, nil
}

func (s *Store) ClearPasswordResetToken(u *User) error {
	u.PasswordResetToken = nil
	u.PasswordResetExpiry = time.Time{}
	return s.db.Save(u).Error
}

// ---- Signup (email verification) ----

// CreateSignupToken stores a pending signup with token hash and password hash.
func (s *Store) CreateSignupToken(email, username, password string, ttl time.Duration, tokenPlain string) (*SignupToken, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email empty")
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	var pwHash []byte
	var err error
	if password != "" {
		pwHash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	}
	sum := sha256.Sum256([]byte(tokenPlain))
	st := &SignupToken{
		Email:        email,
		Username:     username,
		TokenHash:    sum[:],
		ExpiresAt:    time.Now().Add(ttl),
		PasswordHash: string(pwHash),
	}
	if err := s.db.Create(st).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// ConsumeSignupToken validates the token and creates the user afterwards
// (if not existing).
func (s *Store) ConsumeSignupToken(tokenPlain string) (*User, error) {
	sum := sha256.Sum256([]byte(tokenPlain))

	var st SignupToken
	if err := s.db.Where("token_hash = ?", sum[:]).First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSignupTokenNotFound
		}
		return nil, err
	}
	if st.ConsumedAt.Valid {
		return nil, ErrSignupTokenUsed
	}
	if time.Now().After(st.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if err := s.db.Model(&st).Update("consumed_at", time.Now()).Error; err != nil {
		return nil, err
	}

	u, err := s.GetUserByEMail(st.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if u == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		u = &User{
			Email:    st.Email,
			Username: st.Username,
			Verified: true,
		}
		if st.PasswordHash != "" {
			u.Password = st.PasswordHash
		} else {
			// fallback placeholder; force password set later
			u.Password = string([]byte("$2a$10$notsetnotsetnotsetnotsetnotsetno4r3lG2vB4V"))
		}
		if err := s.CreateUser(u); err != nil {
			return nil, err
		}
	} else {
		if !u.Verified {
			u.Verified = true
			if err := s.UpdateUser(u); err != nil {
				return nil, err
			}
		}
	}

	return u, nil
}
