package model

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// Post is a content record owned by its author. A post is public unless
// Restricted is set, in which case only the listed viewers, the author and
// admins may read it.
type Post struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	Content    string       `json:"content" gorm:"type:text;not null"`
	AuthorID   uint         `json:"author_id" gorm:"not null;index"`
	AuthorName string       `json:"author_name" gorm:"size:255;not null"`
	Restricted bool         `json:"-" gorm:"not null;default:false;index"`
	Viewers    []PostViewer `json:"-" gorm:"foreignKey:PostID"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// PostViewer is one member of a post's visibility set.
type PostViewer struct {
	PostID uint `gorm:"primaryKey;autoIncrement:false"`
	UserID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// VisibleTo returns nil for a public post, otherwise the sorted set of user
// ids granted read access. A restricted post with no viewers yields an empty,
// non-nil slice.
func (p *Post) VisibleTo() []uint {
	if !p.Restricted {
		return nil
	}
	ids := lo.Uniq(lo.Map(p.Viewers, func(v PostViewer, _ int) uint { return v.UserID }))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetVisibleTo replaces the visibility set. nil makes the post public.
func (p *Post) SetVisibleTo(ids []uint) {
	if ids == nil {
		p.Restricted = false
		p.Viewers = nil
		return
	}
	p.Restricted = true
	p.Viewers = ViewersFor(p.ID, ids)
}

// HasViewer reports whether userID is a member of the visibility set.
func (p *Post) HasViewer(userID uint) bool {
	return lo.ContainsBy(p.Viewers, func(v PostViewer) bool { return v.UserID == userID })
}

// ViewersFor builds the deduplicated viewer rows for a post.
func ViewersFor(postID uint, ids []uint) []PostViewer {
	return lo.Map(lo.Uniq(ids), func(id uint, _ int) PostViewer {
		return PostViewer{PostID: postID, UserID: id}
	})
}

// Visibility is the tri-state change to a post's visibility set carried by a
// patch: absent leaves it alone, Set with nil IDs makes the post public.
type Visibility struct {
	Set bool
	IDs []uint
}

// PostPatch describes a partial update of a post.
type PostPatch struct {
	Content   *string
	VisibleTo Visibility
}

// Empty reports whether the patch changes nothing.
func (p PostPatch) Empty() bool {
	return p.Content == nil && !p.VisibleTo.Set
}
