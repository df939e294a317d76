package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/parasocial/parasocial/fixtures"
	"github.com/parasocial/parasocial/model"
)

func TestValidatePostBody(t *testing.T) {
	if _, err := model.ValidatePostBody("   "); !errors.Is(err, model.ErrEmptyPostBody) {
		t.Errorf("blank body error = %v, want ErrEmptyPostBody", err)
	}

	long := strings.Repeat("x", 5001)
	if _, err := model.ValidatePostBody(long); !errors.Is(err, model.ErrPostBodyTooLong) {
		t.Errorf("long body error = %v, want ErrPostBodyTooLong", err)
	}

	got, err := model.ValidatePostBody("  hello  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("trimmed body = %q, want %q", got, "hello")
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	p := fixtures.Post(seed.User.ID)
	if err := store.CreatePost(p); err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}
	if p.PublishedAt != nil {
		t.Fatal("draft should have no PublishedAt")
	}

	p.Status = model.PostStatusPublished
	if err := store.SavePost(p); err != nil {
		t.Fatalf("SavePost error: %v", err)
	}
	if p.PublishedAt == nil {
		t.Fatal("publishing should stamp PublishedAt")
	}
	stamped := *p.PublishedAt

	// saving again must not move the timestamp
	p.Body = "edited afterwards"
	if err := store.SavePost(p); err != nil {
		t.Fatalf("SavePost (edit) error: %v", err)
	}
	if !p.PublishedAt.Equal(stamped) {
		t.Errorf("PublishedAt moved from %v to %v on edit", stamped, *p.PublishedAt)
	}
}

func TestListPublishedPostsExcludesDrafts(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	draft := fixtures.Post(seed.User.ID, fixtures.WithPostBody("not yet public"))
	if err := store.CreatePost(draft); err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}

	posts, err := store.ListPublishedPosts(seed.User.ID, 50, 0)
	if err != nil {
		t.Fatalf("ListPublishedPosts error: %v", err)
	}
	for _, p := range posts {
		if p.Status != model.PostStatusPublished {
			t.Errorf("post %d has status %q in the public feed", p.ID, p.Status)
		}
	}
	if len(posts) != 1 {
		t.Errorf("published posts = %d, want 1 (the seeded one)", len(posts))
	}
}

func TestAttachMediaOwnerScoped(t *testing.T) {
	store := fixtures.NewTestStore(t)
	seed := fixtures.SeedTestData(t, store)

	other := fixtures.User(
		fixtures.WithUserEmail("other@parasocial.test"),
		fixtures.WithUsername("other"),
	)
	if err := store.SetPassword(other, "pw-other-1"); err != nil {
		t.Fatalf("SetPassword error: %v", err)
	}
	if err := store.CreateUser(other); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	foreign := fixtures.Media(other.ID, fixtures.WithMediaDiskName("foreign.jpg"))
	if err := store.CreateMedia(foreign); err != nil {
		t.Fatalf("CreateMedia error: %v", err)
	}

	// attaching someone else's media must fail
	if err := store.AttachMedia(seed.Post, []uint{foreign.ID}); err == nil {
		t.Error("AttachMedia accepted media of another owner")
	}

	own := fixtures.Media(seed.User.ID)
	if err := store.CreateMedia(own); err != nil {
		t.Fatalf("CreateMedia error: %v", err)
	}
	if err := store.AttachMedia(seed.Post, []uint{own.ID}); err != nil {
		t.Errorf("AttachMedia rejected the owner's media: %v", err)
	}

	loaded, err := store.GetPostByID(seed.Post.ID, seed.User.ID)
	if err != nil {
		t.Fatalf("GetPostByID error: %v", err)
	}
	if len(loaded.Attachments) != 1 {
		t.Errorf("attachments = %d, want 1", len(loaded.Attachments))
	}
}
