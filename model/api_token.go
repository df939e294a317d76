package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// APIToken authenticates API clients (the web frontend's server side,
// bots, CI). The plaintext token is shown once at creation; only a
// salted hash and a lookup prefix are persisted.
type APIToken struct {
	gorm.Model
	OwnerID     uint   `gorm:"index;not null"`
	TokenPrefix string `gorm:"size:16;index;not null"`
	TokenHash   string `gorm:"size:64;uniqueIndex;not null"`
	Salt        string `gorm:"size:64;not null"`

	Name       string `gorm:"size:100"`
	Scope      string `gorm:"size:200"` // space-separated scope names
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	Disabled   bool `gorm:"not null;default:false"`
}

func (APIToken) TableName() string { return "api_tokens" }

// Scope names understood by the API middleware.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// HasScope reports whether the token carries the given scope. An empty
// scope string means full access (legacy tokens).
func (t *APIToken) HasScope(want string) bool {
	if t.Scope == "" {
		return true
	}
	for _, sc := range strings.Fields(t.Scope) {
		if sc == want {
			return true
		}
	}
	return false
}

// makeToken is the only place that generates token material.
func makeToken() (plain, prefix, saltHex, tokenHash string, err error) {
	// 32 random bytes, URL-safe without '='
	randBytes := make([]byte, 32)
	if _, e := rand.Read(randBytes); e != nil {
		return "", "", "", "", e
	}
	plain = base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(randBytes)
	if len(plain) < 8 {
		return "", "", "", "", errors.New("token generation failed")
	}
	prefix = plain[:8]

	// per-token salt
	salt := make([]byte, 16)
	if _, e := rand.Read(salt); e != nil {
		return "", "", "", "", e
	}
	saltHex = hex.EncodeToString(salt)

	h := sha256.Sum256(append(salt, []byte(plain)...))
	tokenHash = hex.EncodeToString(h[:])
	return
}
