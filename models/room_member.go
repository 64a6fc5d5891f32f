package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoomMember links a user to a room. A user holds at most one membership
// per room; moving a member rewrites RoomID and keeps JoinedAt.
type RoomMember struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID   string    `gorm:"size:36;not null;uniqueIndex:idx_room_members_room_user" json:"roomId"`
	UserID   string    `gorm:"size:36;not null;uniqueIndex:idx_room_members_room_user;index" json:"userId"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Room *Room `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (m *RoomMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
