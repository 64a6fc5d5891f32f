package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

type UserHandler struct {
	log *zap.Logger
}

func NewUserHandler(log *zap.Logger) *UserHandler {
	return &UserHandler{log: log}
}

// ========== List ==========
func (h *UserHandler) List(c echo.Context) error {
	var users []models.User
	if err := database.DB.Order("created_at").Find(&users).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	return c.JSON(http.StatusOK, users)
}

// ========== Get ==========
func (h *UserHandler) Get(c echo.Context) error {
	var user models.User
	if err := database.DB.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "USER_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	return c.JSON(http.StatusOK, user)
}

// ========== Delete ==========
// Administrative deletion. Refused while the user still holds memberships;
// nothing cascades.
func (h *UserHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var user models.User
	if err := database.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "USER_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	var memberships int64
	if err := database.DB.Model(&models.RoomMember{}).Where("user_id = ?", id).Count(&memberships).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if memberships > 0 {
		return jsonError(c, http.StatusBadRequest, "USER_HAS_MEMBERSHIPS")
	}

	if err := database.DB.Delete(&models.User{}, "id = ?", id).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_DELETE_FAILED")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
