package membership

import "errors"

// Typed failures surfaced by the engine. Every one of them is raised
// before any write inside the transaction, so a failed operation never
// leaves partial state. Handlers map them onto HTTP status codes.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyInRoom  = errors.New("user already in this room")
	ErrCrossSheetMove = errors.New("rooms belong to different sheets")
	ErrGenderMismatch = errors.New("rooms have different genders")
	ErrConflict       = errors.New("conflicting unique field")
)
