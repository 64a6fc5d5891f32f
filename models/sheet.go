package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sheet groups the rooms of one building/floor. Code is the access code
// shown only on admin endpoints; public responses blank it out.
type Sheet struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Code      string    `gorm:"size:12;uniqueIndex;not null" json:"code,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	Rooms []Room `gorm:"foreignKey:SheetID" json:"rooms,omitempty"`
}

func (s *Sheet) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Sanitize strips the access code before the sheet leaves a public endpoint.
func (s *Sheet) Sanitize() {
	s.Code = ""
	for i := range s.Rooms {
		s.Rooms[i].Sanitize()
	}
}
