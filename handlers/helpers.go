package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mehdi-lakhzouri/rooming-mangement/membership"
)

func jsonError(c echo.Context, status int, code string) error {
	return c.JSON(status, map[string]string{"error": code})
}

// engineError maps the typed engine failures onto HTTP responses.
func engineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, membership.ErrRoomNotFound):
		return jsonError(c, http.StatusNotFound, "ROOM_NOT_FOUND")
	case errors.Is(err, membership.ErrMemberNotFound):
		return jsonError(c, http.StatusNotFound, "MEMBER_NOT_FOUND")
	case errors.Is(err, membership.ErrRoomFull):
		return jsonError(c, http.StatusBadRequest, "ROOM_FULL")
	case errors.Is(err, membership.ErrAlreadyInRoom):
		return jsonError(c, http.StatusConflict, "ALREADY_IN_ROOM")
	case errors.Is(err, membership.ErrCrossSheetMove):
		return jsonError(c, http.StatusBadRequest, "CROSS_SHEET_MOVE")
	case errors.Is(err, membership.ErrGenderMismatch):
		return jsonError(c, http.StatusBadRequest, "GENDER_MISMATCH")
	case errors.Is(err, membership.ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return jsonError(c, http.StatusConflict, "CONFLICT")
	default:
		return jsonError(c, http.StatusInternalServerError, "INTERNAL_ERROR")
	}
}
