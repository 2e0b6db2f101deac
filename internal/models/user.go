// Package models contains the persistent entities of penfeed and its error taxonomy.
package models

import "time"

// User is an account that can author posts, comment and follow other users.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"-"`
	Password  string    `gorm:"not null" json:"-"`
	IsStaff   bool      `gorm:"not null;default:false" json:"is_staff,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) String() string {
	return u.Username
}
