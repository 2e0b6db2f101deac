package models

import "time"

const (
	postPreviewLen    = 20
	commentPreviewLen = 15
)

// Post is a text entry written by a user. Only Text, GroupID and Image change after creation.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	GroupID   *uint     `gorm:"index" json:"group_id"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"group,omitempty"`
	// Image is an opaque media reference, empty when the post has none.
	Image string `gorm:"size:255;not null;default:''" json:"image,omitempty"`
}

// Preview is the short label used in listings and logs.
func (p Post) Preview() string {
	return truncateRunes(p.Text, postPreviewLen)
}

func (p Post) String() string {
	return p.Preview()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
