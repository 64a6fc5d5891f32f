package handlers

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

type MemberHandler struct {
	log *zap.Logger
}

func NewMemberHandler(log *zap.Logger) *MemberHandler {
	return &MemberHandler{log: log}
}

// ========== List ==========
func (h *MemberHandler) List(c echo.Context) error {
	var members []models.RoomMember
	err := database.DB.
		Preload("User").
		Preload("Room").
		Preload("Room.Sheet").
		Order("joined_at").
		Find(&members).Error
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	for i := range members {
		if members[i].Room != nil {
			members[i].Room.Sanitize()
		}
	}
	return c.JSON(http.StatusOK, members)
}

type genderCount struct {
	Gender string `json:"gender"`
	Count  int64  `json:"count"`
}

// ========== Analytics ==========
func (h *MemberHandler) Analytics(c echo.Context) error {
	db := database.DB

	var totalMembers, totalRooms int64
	if err := db.Model(&models.RoomMember{}).Count(&totalMembers).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if err := db.Model(&models.Room{}).Count(&totalRooms).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	var totalCapacity int64
	if err := db.Model(&models.Room{}).
		Select("COALESCE(SUM(capacity), 0)").Scan(&totalCapacity).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	var byGender []genderCount
	if err := db.Model(&models.Room{}).
		Select("gender, COUNT(*) AS count").
		Group("gender").Order("gender").
		Scan(&byGender).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if byGender == nil {
		byGender = []genderCount{}
	}

	occupancyRate := 0.0
	if totalCapacity > 0 {
		occupancyRate = math.Round(float64(totalMembers)/float64(totalCapacity)*100*100) / 100
	}

	return c.JSON(http.StatusOK, map[string]any{
		"totalMembers":  totalMembers,
		"totalRooms":    totalRooms,
		"totalCapacity": totalCapacity,
		"occupancyRate": occupancyRate,
		"roomsByGender": byGender,
	})
}
