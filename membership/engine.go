package membership

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mehdi-lakhzouri/rooming-mangement/hub"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

// Notifier is the push channel mutations are reported to after they
// commit. Calls are fire-and-forget: a failing notifier never affects a
// committed transaction.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Engine mutates room membership while keeping the denormalized IsFull
// flag consistent with the live member count. Every mutating operation
// runs in a single transaction and takes a FOR UPDATE lock on the
// affected room row(s) first, so two racing joins cannot both pass the
// capacity check and overrun the room.
type Engine struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
}

func NewEngine(db *gorm.DB, notifier Notifier, log *zap.Logger) *Engine {
	return &Engine{db: db, notifier: notifier, log: log}
}

// MoveResult is returned by MoveMember.
type MoveResult struct {
	Member          *models.RoomMember `json:"member"`
	SourceRoom      *models.Room       `json:"sourceRoom"`
	DestinationRoom *models.Room       `json:"destinationRoom"`
}

// JoinRoom adds the named person to a room, creating the user on first
// join. The flag update is monotonic here: joining only ever sets IsFull.
func (e *Engine) JoinRoom(ctx context.Context, roomID, firstname, lastname string) (*models.Room, error) {
	var (
		room   models.Room
		member models.RoomMember
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID, &room); err != nil {
			return err
		}
		count, err := memberCount(tx, roomID)
		if err != nil {
			return err
		}
		if count >= int64(room.Capacity) {
			return ErrRoomFull
		}

		user, err := findOrCreateUser(tx, firstname, lastname)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id = ?", roomID, user.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyInRoom
		}

		member = models.RoomMember{RoomID: roomID, UserID: user.ID}
		if err := tx.Create(&member).Error; err != nil {
			// A racing join can still hit the (room_id, user_id) unique
			// index after the pre-check passed; resolve it the same way.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyInRoom
			}
			return err
		}
		member.User = user

		if count+1 >= int64(room.Capacity) && !room.IsFull {
			if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
				Update("is_full", true).Error; err != nil {
				return err
			}
		}
		return hydrateRoom(tx, roomID, &room)
	})
	if err != nil {
		return nil, err
	}

	e.notify(hub.EventMemberJoined, map[string]any{"roomId": roomID, "member": &member})
	e.notify(hub.EventRoomUpdated, &room)
	return &room, nil
}

// RemoveMember deletes a membership. The member id must belong to the
// given room; an id from another room is reported as not found rather
// than deleting anything. Removing only ever clears IsFull.
func (e *Engine) RemoveMember(ctx context.Context, roomID, memberID string) (*models.Room, error) {
	var room models.Room
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID, &room); err != nil {
			return err
		}
		var member models.RoomMember
		if err := tx.First(&member, "id = ?", memberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if member.RoomID != roomID {
			return ErrMemberNotFound
		}

		if err := tx.Delete(&models.RoomMember{}, "id = ?", memberID).Error; err != nil {
			return err
		}

		count, err := memberCount(tx, roomID)
		if err != nil {
			return err
		}
		if room.IsFull && count < int64(room.Capacity) {
			if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
				Update("is_full", false).Error; err != nil {
				return err
			}
		}
		return hydrateRoom(tx, roomID, &room)
	})
	if err != nil {
		return nil, err
	}

	e.notify(hub.EventMemberLeft, map[string]any{"roomId": roomID, "memberId": memberID})
	e.notify(hub.EventRoomUpdated, &room)
	return &room, nil
}

// MoveMember reassigns a membership to another room of the same sheet and
// gender. JoinedAt is preserved. Both rooms' flags are corrected with the
// same monotonic rules as join/remove: the source may only go full ->
// not-full, the destination not-full -> full.
func (e *Engine) MoveMember(ctx context.Context, memberID, destinationRoomID string) (*MoveResult, error) {
	var (
		member models.RoomMember
		source models.Room
		dest   models.Room
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&member, "id = ?", memberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if member.RoomID == destinationRoomID {
			return ErrAlreadyInRoom
		}

		// Lock the two rooms in id order so two opposite moves between
		// the same pair cannot deadlock.
		rooms := map[string]*models.Room{member.RoomID: &source, destinationRoomID: &dest}
		first, second := member.RoomID, destinationRoomID
		if second < first {
			first, second = second, first
		}
		for _, id := range []string{first, second} {
			if err := lockRoom(tx, id, rooms[id]); err != nil {
				return err
			}
		}

		if source.SheetID != dest.SheetID {
			return ErrCrossSheetMove
		}
		if source.Gender != dest.Gender {
			return ErrGenderMismatch
		}

		destCount, err := memberCount(tx, dest.ID)
		if err != nil {
			return err
		}
		if destCount >= int64(dest.Capacity) {
			return ErrRoomFull
		}

		var existing int64
		if err := tx.Model(&models.RoomMember{}).
			Where("room_id = ? AND user_id = ?", dest.ID, member.UserID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyInRoom
		}

		if err := tx.Model(&models.RoomMember{}).Where("id = ?", member.ID).
			Update("room_id", dest.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyInRoom
			}
			return err
		}
		member.RoomID = dest.ID

		sourceCount, err := memberCount(tx, source.ID)
		if err != nil {
			return err
		}
		if source.IsFull && sourceCount < int64(source.Capacity) {
			if err := tx.Model(&models.Room{}).Where("id = ?", source.ID).
				Update("is_full", false).Error; err != nil {
				return err
			}
		}
		if !dest.IsFull && destCount+1 >= int64(dest.Capacity) {
			if err := tx.Model(&models.Room{}).Where("id = ?", dest.ID).
				Update("is_full", true).Error; err != nil {
				return err
			}
		}

		if err := hydrateRoom(tx, source.ID, &source); err != nil {
			return err
		}
		if err := hydrateRoom(tx, dest.ID, &dest); err != nil {
			return err
		}
		return tx.Preload("User").First(&member, "id = ?", member.ID).Error
	})
	if err != nil {
		return nil, err
	}

	e.notify(hub.EventMemberLeft, map[string]any{"roomId": source.ID, "memberId": member.ID})
	e.notify(hub.EventMemberJoined, map[string]any{"roomId": dest.ID, "member": &member})
	e.notify(hub.EventRoomUpdated, &source)
	e.notify(hub.EventRoomUpdated, &dest)
	return &MoveResult{Member: &member, SourceRoom: &source, DestinationRoom: &dest}, nil
}

// MarkFull forces the flag on regardless of occupancy. This is an
// explicit administrative override, not part of the derived-flag
// maintenance; removing a member afterwards clears it again.
func (e *Engine) MarkFull(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRoom(tx, roomID, &room); err != nil {
			return err
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("is_full", true).Error; err != nil {
			return err
		}
		return hydrateRoom(tx, roomID, &room)
	})
	if err != nil {
		return nil, err
	}

	e.notify(hub.EventRoomUpdated, &room)
	return &room, nil
}

// AvailableRooms lists the rooms a member could be moved into: same
// sheet, same gender, not marked full, current room excluded.
func (e *Engine) AvailableRooms(ctx context.Context, memberID string) ([]models.Room, error) {
	db := e.db.WithContext(ctx)

	var member models.RoomMember
	if err := db.First(&member, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	var current models.Room
	if err := db.First(&current, "id = ?", member.RoomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	var rooms []models.Room
	err := db.Preload("Sheet").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at") }).
		Preload("Members.User").
		Where("sheet_id = ? AND gender = ? AND is_full = ? AND id <> ?",
			current.SheetID, current.Gender, false, current.ID).
		Order("name").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].Sanitize()
	}
	return rooms, nil
}

func (e *Engine) notify(event string, payload any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Broadcast(event, payload)
}

func lockRoom(tx *gorm.DB, id string, out *models.Room) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(out, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRoomNotFound
	}
	return err
}

func memberCount(tx *gorm.DB, roomID string) (int64, error) {
	var n int64
	err := tx.Model(&models.RoomMember{}).Where("room_id = ?", roomID).Count(&n).Error
	return n, err
}

func findOrCreateUser(tx *gorm.DB, firstname, lastname string) (*models.User, error) {
	var user models.User
	err := tx.Where("firstname = ? AND lastname = ?", firstname, lastname).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Firstname: firstname, Lastname: lastname}
		if err := tx.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	default:
		return nil, err
	}
}

// hydrateRoom reloads the room with sheet, members and users, the shape
// every mutating operation returns and broadcasts. The sheet access code
// is stripped; room payloads never carry it.
func hydrateRoom(tx *gorm.DB, id string, out *models.Room) error {
	*out = models.Room{}
	err := tx.Preload("Sheet").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at") }).
		Preload("Members.User").
		First(out, "id = ?", id).Error
	if err != nil {
		return err
	}
	out.Sanitize()
	return nil
}
