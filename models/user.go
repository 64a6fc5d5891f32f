package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User identity is the (firstname, lastname) pair: join requests with the
// same names resolve to the same user (find-or-create, no unique key).
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Firstname string    `gorm:"size:50;not null;index:idx_users_name" json:"firstname"`
	Lastname  string    `gorm:"size:50;not null;index:idx_users_name" json:"lastname"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
