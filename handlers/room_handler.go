package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/hub"
	"github.com/mehdi-lakhzouri/rooming-mangement/membership"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

var (
	roomNameRe   = regexp.MustCompile(`^[a-zA-Z0-9\s\-_().,&]+$`)
	personNameRe = regexp.MustCompile(`^[\p{L}\s'-]+$`)
)

const maxRoomCapacity = 20

type RoomHandler struct {
	engine *membership.Engine
	hub    *hub.Hub
	log    *zap.Logger
}

func NewRoomHandler(engine *membership.Engine, h *hub.Hub, log *zap.Logger) *RoomHandler {
	return &RoomHandler{engine: engine, hub: h, log: log}
}

type roomPayload struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Gender   string `json:"gender"`
	SheetID  string `json:"sheetId"`
}

func (p *roomPayload) norm() {
	p.Name = strings.TrimSpace(p.Name)
	p.Gender = strings.TrimSpace(p.Gender)
	p.SheetID = strings.TrimSpace(p.SheetID)
}

func validateRoom(p *roomPayload) map[string]string {
	errs := map[string]string{}
	if p.Name == "" || len(p.Name) > 100 {
		errs["name"] = "name must be between 1 and 100 characters"
	} else if !roomNameRe.MatchString(p.Name) {
		errs["name"] = "name contains invalid characters"
	}
	if p.Capacity < 1 || p.Capacity > maxRoomCapacity {
		errs["capacity"] = "capacity must be between 1 and 20"
	}
	if !models.ValidGender(p.Gender) {
		errs["gender"] = "gender must be MALE or FEMALE"
	}
	if p.SheetID == "" {
		errs["sheetId"] = "sheetId is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validatePersonName(field, v string, errs map[string]string) {
	if len(v) < 2 || len(v) > 50 {
		errs[field] = field + " must be between 2 and 50 characters"
	} else if !personNameRe.MatchString(v) {
		errs[field] = field + " contains invalid characters"
	}
}

func roomScope(db *gorm.DB) *gorm.DB {
	return db.Preload("Sheet").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at") }).
		Preload("Members.User")
}

// ========== List ==========
func (h *RoomHandler) List(c echo.Context) error {
	tx := roomScope(database.DB)
	if gender := c.QueryParam("gender"); gender != "" {
		if !models.ValidGender(gender) {
			return jsonError(c, http.StatusBadRequest, "INVALID_GENDER")
		}
		tx = tx.Where("gender = ?", gender)
	}

	var rooms []models.Room
	if err := tx.Order("name").Find(&rooms).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	for i := range rooms {
		rooms[i].Sanitize()
	}
	return c.JSON(http.StatusOK, rooms)
}

// ========== Get ==========
func (h *RoomHandler) Get(c echo.Context) error {
	var room models.Room
	if err := roomScope(database.DB).First(&room, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "ROOM_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	room.Sanitize()
	return c.JSON(http.StatusOK, room)
}

// ========== Create ==========
func (h *RoomHandler) Create(c echo.Context) error {
	var p roomPayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}
	p.norm()
	if errs := validateRoom(&p); errs != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": errs})
	}

	var sheets int64
	if err := database.DB.Model(&models.Sheet{}).Where("id = ?", p.SheetID).Count(&sheets).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if sheets == 0 {
		return jsonError(c, http.StatusBadRequest, "SHEET_NOT_FOUND")
	}

	room := models.Room{
		Name:     p.Name,
		Capacity: p.Capacity,
		Gender:   p.Gender,
		SheetID:  p.SheetID,
	}
	if err := database.DB.Create(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, http.StatusConflict, "ROOM_NAME_TAKEN")
		}
		h.log.Error("create room", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "DB_CREATE_FAILED")
	}

	if err := roomScope(database.DB).First(&room, "id = ?", room.ID).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	room.Sanitize()

	h.hub.Broadcast(hub.EventRoomCreated, room)
	return c.JSON(http.StatusCreated, room)
}

type roomUpdatePayload struct {
	Name     *string `json:"name"`
	Capacity *int    `json:"capacity"`
	Gender   *string `json:"gender"`
	IsFull   *bool   `json:"isFull"`
}

// ========== Update ==========
// Partial update. When the capacity changes, the full flag is recomputed
// from the live member count unless the caller set it explicitly.
func (h *RoomHandler) Update(c echo.Context) error {
	id := c.Param("id")

	var p roomUpdatePayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}

	var room models.Room
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return membership.ErrRoomNotFound
			}
			return err
		}

		errs := map[string]string{}
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" || len(name) > 100 || !roomNameRe.MatchString(name) {
				errs["name"] = "invalid room name"
			} else {
				room.Name = name
			}
		}
		capacityChanged := false
		if p.Capacity != nil {
			if *p.Capacity < 1 || *p.Capacity > maxRoomCapacity {
				errs["capacity"] = "capacity must be between 1 and 20"
			} else if *p.Capacity != room.Capacity {
				room.Capacity = *p.Capacity
				capacityChanged = true
			}
		}
		if p.Gender != nil {
			if !models.ValidGender(*p.Gender) {
				errs["gender"] = "gender must be MALE or FEMALE"
			} else {
				room.Gender = *p.Gender
			}
		}
		if len(errs) > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, errs)
		}

		switch {
		case p.IsFull != nil:
			room.IsFull = *p.IsFull
		case capacityChanged:
			var count int64
			if err := tx.Model(&models.RoomMember{}).Where("room_id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			room.IsFull = count >= int64(room.Capacity)
		}

		if err := tx.Save(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return membership.ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return c.JSON(httpErr.Code, map[string]any{"error": "VALIDATION_ERROR", "fields": httpErr.Message})
		}
		return engineError(c, err)
	}

	if err := roomScope(database.DB).First(&room, "id = ?", id).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	room.Sanitize()

	h.hub.Broadcast(hub.EventRoomUpdated, room)
	return c.JSON(http.StatusOK, room)
}

// ========== Delete ==========
func (h *RoomHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var room models.Room
	if err := database.DB.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "ROOM_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	var members int64
	if err := database.DB.Model(&models.RoomMember{}).Where("room_id = ?", id).Count(&members).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if members > 0 {
		return jsonError(c, http.StatusBadRequest, "ROOM_HAS_MEMBERS")
	}

	if err := database.DB.Delete(&models.Room{}, "id = ?", id).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_DELETE_FAILED")
	}

	h.hub.Broadcast(hub.EventRoomDeleted, map[string]string{"roomId": id})
	return c.JSON(http.StatusOK, map[string]string{"message": "Room deleted successfully"})
}

type joinPayload struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// ========== Join ==========
func (h *RoomHandler) Join(c echo.Context) error {
	var p joinPayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}
	p.Firstname = strings.TrimSpace(p.Firstname)
	p.Lastname = strings.TrimSpace(p.Lastname)

	errs := map[string]string{}
	validatePersonName("firstname", p.Firstname, errs)
	validatePersonName("lastname", p.Lastname, errs)
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": errs})
	}

	room, err := h.engine.JoinRoom(c.Request().Context(), c.Param("id"), p.Firstname, p.Lastname)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, room)
}

// ========== Members ==========
func (h *RoomHandler) Members(c echo.Context) error {
	var room models.Room
	if err := roomScope(database.DB).First(&room, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "ROOM_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	return c.JSON(http.StatusOK, room.Members)
}

// ========== RemoveMember ==========
func (h *RoomHandler) RemoveMember(c echo.Context) error {
	_, err := h.engine.RemoveMember(c.Request().Context(), c.Param("roomId"), c.Param("memberId"))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Member removed successfully"})
}

// ========== MarkFull ==========
func (h *RoomHandler) MarkFull(c echo.Context) error {
	room, err := h.engine.MarkFull(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

type movePayload struct {
	DestinationRoomID string `json:"destinationRoomId"`
}

// ========== MoveMember ==========
func (h *RoomHandler) MoveMember(c echo.Context) error {
	var p movePayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}
	p.DestinationRoomID = strings.TrimSpace(p.DestinationRoomID)
	if p.DestinationRoomID == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":  "VALIDATION_ERROR",
			"fields": map[string]string{"destinationRoomId": "destinationRoomId is required"},
		})
	}

	result, err := h.engine.MoveMember(c.Request().Context(), c.Param("memberId"), p.DestinationRoomID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ========== AvailableRooms ==========
func (h *RoomHandler) AvailableRooms(c echo.Context) error {
	rooms, err := h.engine.AvailableRooms(c.Request().Context(), c.Param("memberId"))
	if err != nil {
		return engineError(c, err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return c.JSON(http.StatusOK, rooms)
}
