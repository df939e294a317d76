package model

import (
	"time"
)

// ---- Unified account activity (UNION across item tables) ----

type ActivityHead struct {
	ItemType  string    `gorm:"column:item_type"` // "post" | "follow" | "media"
	ItemID    uint      `gorm:"column:item_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// GetActivityHeads returns the newest items across all types for the
// owner's dashboard, most recent first.
func (s *Store) GetActivityHeads(ownerID any, limit int) ([]ActivityHead, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []ActivityHead

	raw := `
SELECT CAST('post' AS text)   AS item_type,
       CAST(id AS bigint)     AS item_id,
       created_at
FROM posts
WHERE owner_id = ? AND deleted_at IS NULL

UNION ALL

SELECT CAST('follow' AS text) AS item_type,
       CAST(id AS bigint)     AS item_id,
       created_at
FROM follows
WHERE owner_id = ? AND deleted_at IS NULL

UNION ALL

SELECT CAST('media' AS text)  AS item_type,
       CAST(id AS bigint)     AS item_id,
       created_at
FROM media
WHERE owner_id = ? AND deleted_at IS NULL

ORDER BY created_at DESC
LIMIT ?`
	if err := s.db.Raw(raw, ownerID, ownerID, ownerID, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ---- Batch loaders (avoid N+1) ----

func (s *Store) PostsByIDs(ownerID any, ids []uint) (map[uint]Post, error) {
	out := make(map[uint]Post)
	if len(ids) == 0 {
		return out, nil
	}
	var items []Post
	if err := s.db.
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (s *Store) FollowsByIDs(ownerID any, ids []uint) (map[uint]Follow, error) {
	out := make(map[uint]Follow)
	if len(ids) == 0 {
		return out, nil
	}
	var items []Follow
	if err := s.db.
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (s *Store) MediaByIDs(ownerID any, ids []uint) (map[uint]Media, error) {
	out := make(map[uint]Media)
	if len(ids) == 0 {
		return out, nil
	}
	var items []Media
	if err := s.db.
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// ---- Load everything in one go ----

type ActivityHydration struct {
	Heads   []ActivityHead
	Posts   map[uint]Post
	Follows map[uint]Follow
	Media   map[uint]Media
}

func (s *Store) LoadActivity(ownerID any, limit int) (*ActivityHydration, error) {
	heads, err := s.GetActivityHeads(ownerID, limit)
	if err != nil {
		return nil, err
	}

	postSet := make(map[uint]struct{})
	followSet := make(map[uint]struct{})
	mediaSet := make(map[uint]struct{})

	for _, h := range heads {
		switch h.ItemType {
		case "post":
			postSet[h.ItemID] = struct{}{}
		case "follow":
			followSet[h.ItemID] = struct{}{}
		case "media":
			mediaSet[h.ItemID] = struct{}{}
		}
	}

	toSlice := func(m map[uint]struct{}) []uint {
		out := make([]uint, 0, len(m))
		for id := range m {
			out = append(out, id)
		}
		return out
	}

	pmap, err := s.PostsByIDs(ownerID, toSlice(postSet))
	if err != nil {
		return nil, err
	}
	fmap, err := s.FollowsByIDs(ownerID, toSlice(followSet))
	if err != nil {
		return nil, err
	}
	mmap, err := s.MediaByIDs(ownerID, toSlice(mediaSet))
	if err != nil {
		return nil, err
	}

	return &ActivityHydration{
		Heads:   heads,
		Posts:   pmap,
		Follows: fmap,
		Media:   mmap,
	}, nil
}
