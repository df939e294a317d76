package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Follow records a remote actor following a local user. The relation is
// one-way: local users are broadcast-only and never follow back.
//
// ActorURI is the ActivityPub-style identity of the remote follower
// (e.g. https://example.social/users/alice). Domain is derived from it
// so follower lists can be filtered per instance.
type Follow struct {
	gorm.Model
	OwnerID    uint   `gorm:"index;not null"` // the local user being followed
	ActorURI   string `gorm:"not null"`
	InboxURL   string
	Domain     string `gorm:"index"`
	FollowedAt time.Time
}

var ErrInvalidActorURI = fmt.Errorf("invalid actor URI")

// NormalizeActorURI validates the actor identifier and returns it with
// the host lowercased. Only absolute http(s) URLs are accepted.
func NormalizeActorURI(raw string) (uri string, domain string, err error) {
	raw = strings.TrimSpace(raw)
	u, perr := url.Parse(raw)
	if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", ErrInvalidActorURI
	}
	u.Host = strings.ToLower(u.Host)
	return u.String(), u.Hostname(), nil
}

// CreateFollow records a follower. Repeating the same actor for the
// same owner refreshes FollowedAt instead of failing (idempotent).
func (s *Store) CreateFollow(ownerID uint, actorURI, inboxURL string) (*Follow, error) {
	uri, domain, err := NormalizeActorURI(actorURI)
	if err != nil {
		return nil, err
	}
	if inboxURL != "" {
		if _, _, err := NormalizeActorURI(inboxURL); err != nil {
			return nil, err
		}
	}
	f := &Follow{
		OwnerID:    ownerID,
		ActorURI:   uri,
		InboxURL:   inboxURL,
		Domain:     domain,
		FollowedAt: time.Now(),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "actor_uri"}},
		DoUpdates: clause.AssignmentColumns([]string{"followed_at", "inbox_url", "deleted_at"}),
	}).Create(f).Error
	if err != nil {
		return nil, err
	}
	return f, nil
}

// RemoveFollow deletes a follower record by actor URI, scoped to the owner.
func (s *Store) RemoveFollow(ownerID uint, actorURI string) error {
	uri, _, err := NormalizeActorURI(actorURI)
	if err != nil {
		return err
	}
	res := s.db.Where("owner_id = ? AND actor_uri = ?", ownerID, uri).Delete(&Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FollowFilters provides filtering and paging parameters for follower lists.
type FollowFilters struct {
	Domain string // optional: restrict to one remote instance
	Query  string // optional: substring match on the actor URI
	Limit  int    // page size (defaults to 50; capped at 200)
	Offset int
}

// FollowList is one page of followers plus the total matching count.
type FollowList struct {
	Follows []Follow
	Total   int64
}

// ListFollows returns one page of followers for the owner, newest first.
func (s *Store) ListFollows(ownerID uint, f FollowFilters) (*FollowList, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}

	db := s.db.Model(&Follow{}).Where("owner_id = ?", ownerID)
	if f.Domain != "" {
		db = db.Where("domain = ?", strings.ToLower(f.Domain))
	}
	if f.Query != "" {
		like := "%" + likeEscape(strings.ToLower(f.Query)) + "%"
		db = db.Where("LOWER(actor_uri) LIKE ? ESCAPE '\\'", like)
	}

	out := &FollowList{}
	if err := db.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Order("followed_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&out.Follows).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountFollows returns the number of followers of the owner.
func (s *Store) CountFollows(ownerID uint) (int64, error) {
	var n int64
	err := s.db.Model(&Follow{}).Where("owner_id = ?", ownerID).Count(&n).Error
	return n, err
}

// ListFollowsForExport loads all followers of the owner, oldest first.
func (s *Store) ListFollowsForExport(ownerID uint) ([]Follow, error) {
	var follows []Follow
	err := s.db.Where("owner_id = ?", ownerID).Order("followed_at ASC").Find(&follows).Error
	return follows, err
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
