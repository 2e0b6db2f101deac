package models

// Follow is a directed subscription edge: UserID follows AuthorID.
// The pair is unique; self-edges are refused by the service layer.
type Follow struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	UserID   uint  `gorm:"not null;uniqueIndex:idx_follows_pair" json:"user_id"`
	User     *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID uint  `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"author_id"`
	Author   *User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
}
