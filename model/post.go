package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

func (st PostStatus) IsValid() bool {
	return st == PostStatusDraft || st == PostStatusPublished
}

// Post is a broadcast entry. Posts are owner-scoped and may carry media
// attachments. Followers only ever see published posts.
type Post struct {
	gorm.Model
	OwnerID     uint       `gorm:"index;not null"`
	Body        string     `gorm:"not null"`
	Status      PostStatus `gorm:"type:text;not null;default:draft"`
	PublishedAt *time.Time
	Attachments []Media `gorm:"many2many:post_attachments;"`
}

const maxPostBody = 5000

var (
	ErrEmptyPostBody   = fmt.Errorf("post body is empty")
	ErrPostBodyTooLong = fmt.Errorf("post body too long")
)

// ValidatePostBody trims and bounds-checks the body text.
func ValidatePostBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyPostBody
	}
	if len([]rune(body)) > maxPostBody {
		return "", ErrPostBodyTooLong
	}
	return body, nil
}

// CreatePost inserts a new post. Publishing state is stamped here so a
// post created as "published" gets its PublishedAt immediately.
func (s *Store) CreatePost(p *Post) error {
	body, err := ValidatePostBody(p.Body)
	if err != nil {
		return err
	}
	p.Body = body
	if !p.Status.IsValid() {
		p.Status = PostStatusDraft
	}
	if p.Status == PostStatusPublished && p.PublishedAt == nil {
		now := time.Now()
		p.PublishedAt = &now
	}
	return s.db.Create(p).Error
}

// GetPostByID loads a single post by ID, ensuring it belongs to the owner.
func (s *Store) GetPostByID(id uint, ownerID uint) (*Post, error) {
	var p Post
	err := s.db.
		Preload("Attachments").
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePost updates body/status of an existing post. Publishing a draft
// stamps PublishedAt; the timestamp is never reset once set.
func (s *Store) SavePost(p *Post) error {
	body, err := ValidatePostBody(p.Body)
	if err != nil {
		return err
	}
	p.Body = body
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid post status %q", p.Status)
	}
	if p.Status == PostStatusPublished && p.PublishedAt == nil {
		now := time.Now()
		p.PublishedAt = &now
	}
	return s.db.Save(p).Error
}

// DeletePost removes a post and its attachment links, scoped to the owner.
func (s *Store) DeletePost(id uint, ownerID uint) error {
	p, err := s.GetPostByID(id, ownerID)
	if err != nil {
		return err
	}
	if err := s.db.Model(p).Association("Attachments").Clear(); err != nil {
		return err
	}
	return s.db.Delete(p).Error
}

// AttachMedia links owner-checked media rows to the post, replacing the
// previous attachment set.
func (s *Store) AttachMedia(p *Post, mediaIDs []uint) error {
	media := make([]Media, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		m, err := s.GetMediaByID(id, p.OwnerID)
		if err != nil {
			return fmt.Errorf("attachment %d: %w", id, err)
		}
		media = append(media, *m)
	}
	return s.db.Model(p).Association("Attachments").Replace(media)
}

// PostFilters provides filtering and paging parameters for listing posts.
type PostFilters struct {
	Status PostStatus // optional: "draft" or "published"
	Query  string     // optional: substring match on the body
	Limit  int        // page size (defaults to 25; capped at 200)
	Offset int
}

// PostList is one page of posts plus the total matching count.
type PostList struct {
	Posts []Post
	Total int64
}

// ListPosts returns one page of the owner's posts, newest first.
func (s *Store) ListPosts(ownerID uint, f PostFilters) (*PostList, error) {
	if f.Limit <= 0 {
		f.Limit = 25
	}
	if f.Limit > 200 {
		f.Limit = 200
	}

	db := s.db.Model(&Post{}).Where("owner_id = ?", ownerID)
	if f.Status != "" {
		if !f.Status.IsValid() {
			return nil, fmt.Errorf("invalid post status %q", f.Status)
		}
		db = db.Where("status = ?", f.Status)
	}
	if f.Query != "" {
		like := "%" + likeEscape(strings.ToLower(f.Query)) + "%"
		db = db.Where("LOWER(body) LIKE ? ESCAPE '\\'", like)
	}

	out := &PostList{}
	if err := db.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Attachments").
		Order("created_at DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&out.Posts).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPublishedPosts returns the public feed of a user, newest first.
func (s *Store) ListPublishedPosts(ownerID uint, limit, offset int) ([]Post, error) {
	if limit <= 0 {
		limit = 25
	}
	if limit > 200 {
		limit = 200
	}
	var posts []Post
	err := s.db.Preload("Attachments").
		Where("owner_id = ? AND status = ?", ownerID, PostStatusPublished).
		Order("published_at DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	return posts, err
}

// ListPostsForExport loads all posts of the owner, oldest first.
func (s *Store) ListPostsForExport(ownerID uint) ([]Post, error) {
	var posts []Post
	err := s.db.Preload("Attachments").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&posts).Error
	return posts, err
}
