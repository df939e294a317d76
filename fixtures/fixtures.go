// Package fixtures provides an in-memory test store plus small builders
// for the model types. Controller and model tests share it.
package fixtures

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/parasocial/parasocial/model"
)

// DefaultOwnerID is the ID of the user created by SeedTestData.
const DefaultOwnerID uint = 1

// NewTestStore opens a fresh in-memory SQLite database with the full
// schema applied. Each test gets its own database.
func NewTestStore(t *testing.T) *model.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("cannot open test database: %v", err)
	}

	cfg := &model.Config{
		Basedir:        t.TempDir(),
		BaseURL:        "https://parasocial.test",
		CookieSecret:   "test-secret",
		Mode:           "development",
		MaxUploadBytes: 5 * 1024 * 1024,
	}
	store, err := model.NewStoreWithDB(db, cfg)
	if err != nil {
		t.Fatalf("cannot migrate test database: %v", err)
	}
	return store
}

// SeedData describes what SeedTestData created.
type SeedData struct {
	User   *model.User
	Post   *model.Post
	Follow *model.Follow
}

// SeedTestData creates one verified user with a published post and a
// single remote follower.
func SeedTestData(t *testing.T, store *model.Store) *SeedData {
	t.Helper()

	u := User()
	if err := store.SetPassword(u, "test-password"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if err := store.CreateUser(u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	p := Post(u.ID, WithPostStatus(model.PostStatusPublished))
	if err := store.CreatePost(p); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	f, err := store.CreateFollow(u.ID, "https://remote.example/users/alice", "https://remote.example/users/alice/inbox")
	if err != nil {
		t.Fatalf("CreateFollow failed: %v", err)
	}

	return &SeedData{User: u, Post: p, Follow: f}
}

// ---- builders ----

type UserOption func(*model.User)

func WithUserEmail(email string) UserOption {
	return func(u *model.User) { u.Email = email }
}

func WithUsername(name string) UserOption {
	return func(u *model.User) { u.Username = name }
}

func WithDisplayName(name string) UserOption {
	return func(u *model.User) { u.DisplayName = name }
}

// User builds a verified default user. The first user created in a
// fresh test store gets ID 1 (= DefaultOwnerID).
func User(opts ...UserOption) *model.User {
	u := &model.User{
		Email:       "host@parasocial.test",
		Username:    "host",
		DisplayName: "The Host",
		Verified:    true,
		Password:    "unused",
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type PostOption func(*model.Post)

func WithPostBody(body string) PostOption {
	return func(p *model.Post) { p.Body = body }
}

func WithPostStatus(st model.PostStatus) PostOption {
	return func(p *model.Post) { p.Status = st }
}

func Post(ownerID uint, opts ...PostOption) *model.Post {
	p := &model.Post{
		OwnerID: ownerID,
		Body:    "Hello, followers!",
		Status:  model.PostStatusDraft,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type MediaOption func(*model.Media)

func WithMediaDiskName(name string) MediaOption {
	return func(m *model.Media) { m.DiskName = name }
}

func WithMediaSize(n int64) MediaOption {
	return func(m *model.Media) { m.ByteSize = n }
}

func Media(ownerID uint, opts ...MediaOption) *model.Media {
	m := &model.Media{
		OwnerID:      ownerID,
		DiskName:     "0b5c7e1a-test.jpg",
		OriginalName: "photo.jpg",
		ContentType:  "image/jpeg",
		ByteSize:     1024,
		Kind:         model.MediaKindImage,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ExpiredAt is a convenience for token expiry tests.
func ExpiredAt() *time.Time {
	t := time.Now().Add(-time.Hour)
	return &t
}
