package model_test

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/parasocial/parasocial/fixtures"
	"github.com/parasocial/parasocial/model"
)

func TestNormalizeActorURI(t *testing.T) {
	tests := []struct {
		raw        string
		wantURI    string
		wantDomain string
		wantErr    bool
	}{
		{"https://Example.Social/users/Alice", "https://example.social/users/Alice", "example.social", false},
		{"http://example.com/u/bob", "http://example.com/u/bob", "example.com", false},
		{"  https://pad.example/actor  ", "https://pad.example/actor", "pad.example", false},
		{"ftp://example.com/alice", "", "", true},
		{"/users/alice", "", "", true},
		{"", "", "", true},
		{"not a url", "", "", true},
	}

	for _, tt := range tests {
		uri, domain, err := model.NormalizeActorURI(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, model.ErrInvalidActorURI) {
				t.Errorf("NormalizeActorURI(%q) error = %v, want ErrInvalidActorURI", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeActorURI(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if uri != tt.wantURI {
			t.Errorf("NormalizeActorURI(%q) uri = %q, want %q", tt.raw, uri, tt.wantURI)
		}
		if domain != tt.wantDomain {
			t.Errorf("NormalizeActorURI(%q) domain = %q, want %q", tt.raw, domain, tt.wantDomain)
		}
	}
}

func TestCreateFollowIdempotent(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	first, err := store.CreateFollow(seed.User.ID, "https://mastodon.example/users/carol", "")
	if err != nil {
		t.Fatalf("CreateFollow error: %v", err)
	}

	// same actor again, now with an inbox
	second, err := store.CreateFollow(seed.User.ID, "https://mastodon.example/users/carol", "https://mastodon.example/inbox")
	if err != nil {
		t.Fatalf("CreateFollow (repeat) error: %v", err)
	}

	list, err := store.ListFollows(seed.User.ID, model.FollowFilters{Domain: "mastodon.example"})
	if err != nil {
		t.Fatalf("ListFollows error: %v", err)
	}
	if len(list.Follows) != 1 {
		t.Fatalf("follows for domain = %d, want 1 (first id %d, second id %d)", len(list.Follows), first.ID, second.ID)
	}
	if list.Follows[0].InboxURL != "https://mastodon.example/inbox" {
		t.Errorf("InboxURL = %q, want the refreshed value", list.Follows[0].InboxURL)
	}
}

func TestRemoveFollowRevivesOnRefollow(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	actor := seed.Follow.ActorURI
	if err := store.RemoveFollow(seed.User.ID, actor); err != nil {
		t.Fatalf("RemoveFollow error: %v", err)
	}
	if n, _ := store.CountFollows(seed.User.ID); n != 0 {
		t.Fatalf("CountFollows after remove = %d, want 0", n)
	}

	// following again un-deletes the soft-deleted row
	if _, err := store.CreateFollow(seed.User.ID, actor, ""); err != nil {
		t.Fatalf("re-follow error: %v", err)
	}
	if n, _ := store.CountFollows(seed.User.ID); n != 1 {
		t.Errorf("CountFollows after re-follow = %d, want 1", n)
	}
}

func TestRemoveFollowNotFound(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	err := store.RemoveFollow(seed.User.ID, "https://nobody.example/users/ghost")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("RemoveFollow error = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestListFollowsQueryEscapesLike(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	// the escaped %25 survives normalization, so the stored URI contains
	// a literal "%" for the LIKE query to hit
	if _, err := store.CreateFollow(seed.User.ID, "https://odd.example/users/100%25e", ""); err != nil {
		t.Fatalf("CreateFollow error: %v", err)
	}

	// "%" in the query must match literally, not as a wildcard
	list, err := store.ListFollows(seed.User.ID, model.FollowFilters{Query: "100%"})
	if err != nil {
		t.Fatalf("ListFollows error: %v", err)
	}
	if len(list.Follows) != 1 {
		t.Errorf("matches = %d, want 1", len(list.Follows))
	}

	list, err = store.ListFollows(seed.User.ID, model.FollowFilters{Query: "%alice%"})
	if err != nil {
		t.Fatalf("ListFollows error: %v", err)
	}
	if len(list.Follows) != 0 {
		t.Errorf("wildcard query matched %d rows, want 0", len(list.Follows))
	}
}
