package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

// Room name is unique per (sheet, gender) pair. IsFull is denormalized:
// the membership engine keeps it consistent with the live member count.
type Room struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex:idx_rooms_sheet_gender_name" json:"name"`
	Capacity  int       `gorm:"not null" json:"capacity"`
	Gender    string    `gorm:"size:6;not null;uniqueIndex:idx_rooms_sheet_gender_name" json:"gender"`
	IsFull    bool      `gorm:"not null;default:false" json:"isFull"`
	SheetID   string    `gorm:"size:36;not null;index;uniqueIndex:idx_rooms_sheet_gender_name" json:"sheetId"`
	CreatedAt time.Time `json:"createdAt"`

	Sheet   *Sheet       `gorm:"foreignKey:SheetID" json:"sheet,omitempty"`
	Members []RoomMember `gorm:"foreignKey:RoomID" json:"members"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *Room) Sanitize() {
	if r.Sheet != nil {
		r.Sheet.Code = ""
	}
}

func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale
}
