package model

import (
	"path/filepath"
	"strings"

	"gorm.io/gorm"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindOther MediaKind = "other"
)

// Media is the metadata row for one uploaded file. The bytes live under
// the uploads directory; DiskName is the name on disk (uuid + original
// extension), never the user-supplied filename.
type Media struct {
	gorm.Model
	OwnerID      uint   `gorm:"index;not null"`
	DiskName     string `gorm:"uniqueIndex;not null"`
	OriginalName string
	ContentType  string
	ByteSize     int64
	Kind         MediaKind `gorm:"type:text;not null;default:other"`
	Description  string    // alt text
	PreviewName  string    // disk name of a rendered preview, if any
}

func (Media) TableName() string { return "media" }

// KindForExtension maps a filename extension to the media kind used for
// the inline/attachment disposition decision when serving.
func KindForExtension(ext string) MediaKind {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "png", "gif", "webp", "avif", "svg":
		return MediaKindImage
	case "mp4", "webm", "mov", "m4v":
		return MediaKindVideo
	default:
		return MediaKindOther
	}
}

// KindForName is KindForExtension applied to a full file name.
func KindForName(name string) MediaKind {
	return KindForExtension(filepath.Ext(name))
}

// CreateMedia inserts a metadata row for a stored file.
func (s *Store) CreateMedia(m *Media) error {
	if m.Kind == "" {
		m.Kind = KindForName(m.DiskName)
	}
	return s.db.Create(m).Error
}

// GetMediaByID loads a single media row, ensuring it belongs to the owner.
func (s *Store) GetMediaByID(id uint, ownerID uint) (*Media, error) {
	var m Media
	err := s.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMedia saves changed metadata (description, preview name).
func (s *Store) UpdateMedia(m *Media) error {
	return s.db.Save(m).Error
}

// DeleteMedia removes the metadata row. Removing the bytes on disk is
// the caller's job; see the media controller.
func (s *Store) DeleteMedia(id uint, ownerID uint) (*Media, error) {
	m, err := s.GetMediaByID(id, ownerID)
	if err != nil {
		return nil, err
	}
	// drop attachment links first so posts never reference a dead row
	if err := s.db.Exec(`DELETE FROM post_attachments WHERE media_id = ?`, m.ID).Error; err != nil {
		return nil, err
	}
	if err := s.db.Delete(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// MediaList is one page of media rows plus the total count.
type MediaList struct {
	Media []Media
	Total int64
}

// ListMedia returns one page of the owner's media, newest first.
func (s *Store) ListMedia(ownerID uint, limit, offset int) (*MediaList, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	db := s.db.Model(&Media{}).Where("owner_id = ?", ownerID)
	out := &MediaList{}
	if err := db.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	// id as tie-breaker keeps OFFSET paging stable when timestamps collide
	if err := db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&out.Media).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UsedUploadBytes sums the stored byte sizes of the owner's media, for
// quota checks before accepting a new upload.
func (s *Store) UsedUploadBytes(ownerID uint) (int64, error) {
	var used int64
	err := s.db.Model(&Media{}).
		Where("owner_id = ?", ownerID).
		Select("COALESCE(SUM(byte_size), 0)").
		Scan(&used).Error
	return used, err
}

// AllDiskNames returns every disk name referenced by any media row,
// including previews. Maintenance uses it to find orphaned files.
func (s *Store) AllDiskNames() (map[string]bool, error) {
	var rows []Media
	if err := s.db.Select("disk_name", "preview_name").Find(&rows).Error; err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(rows)*2)
	for _, m := range rows {
		names[m.DiskName] = true
		if m.PreviewName != "" {
			names[m.PreviewName] = true
		}
	}
	return names, nil
}
