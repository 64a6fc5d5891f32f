package handlers

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/hub"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

var sheetNameRe = regexp.MustCompile(`^[a-zA-Z0-9\s\-_&()]+$`)

type SheetHandler struct {
	hub *hub.Hub
	log *zap.Logger
}

func NewSheetHandler(h *hub.Hub, log *zap.Logger) *SheetHandler {
	return &SheetHandler{hub: h, log: log}
}

type sheetPayload struct {
	Name string `json:"name"`
}

func (p *sheetPayload) norm() { p.Name = strings.TrimSpace(p.Name) }

func validateSheet(p *sheetPayload) map[string]string {
	errs := map[string]string{}
	if len(p.Name) < 3 || len(p.Name) > 100 {
		errs["name"] = "name must be between 3 and 100 characters"
	} else if !sheetNameRe.MatchString(p.Name) {
		errs["name"] = "name contains invalid characters"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// newSheetCode generates an access code like "SDC-4376".
func newSheetCode() string {
	return fmt.Sprintf("SDC-%04d", rand.Intn(10000))
}

func sheetScope(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Rooms", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Rooms.Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at") }).
		Preload("Rooms.Members.User")
}

// ========== List ==========
func (h *SheetHandler) List(c echo.Context) error {
	var sheets []models.Sheet
	if err := sheetScope(database.DB).Order("created_at").Find(&sheets).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	for i := range sheets {
		sheets[i].Sanitize()
	}
	return c.JSON(http.StatusOK, sheets)
}

// ========== Get ==========
func (h *SheetHandler) Get(c echo.Context) error {
	var sheet models.Sheet
	if err := sheetScope(database.DB).First(&sheet, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "SHEET_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	sheet.Sanitize()
	return c.JSON(http.StatusOK, sheet)
}

// ========== Create ==========
func (h *SheetHandler) Create(c echo.Context) error {
	var p sheetPayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}
	p.norm()
	if errs := validateSheet(&p); errs != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": errs})
	}

	var dup int64
	if err := database.DB.Model(&models.Sheet{}).Where("name = ?", p.Name).Count(&dup).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if dup > 0 {
		return jsonError(c, http.StatusConflict, "SHEET_NAME_TAKEN")
	}

	// Regenerate on a code collision; the unique index is the arbiter.
	sheet := models.Sheet{Name: p.Name}
	for attempt := 0; ; attempt++ {
		sheet.ID = ""
		sheet.Code = newSheetCode()
		err := database.DB.Create(&sheet).Error
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < 5 {
			continue
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, http.StatusConflict, "SHEET_NAME_TAKEN")
		}
		h.log.Error("create sheet", zap.Error(err))
		return jsonError(c, http.StatusInternalServerError, "DB_CREATE_FAILED")
	}

	if err := sheetScope(database.DB).First(&sheet, "id = ?", sheet.ID).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	pub := sheet
	pub.Sanitize()
	h.hub.Broadcast(hub.EventSheetCreated, pub)

	// The creator is the administrator; the response keeps the code.
	return c.JSON(http.StatusCreated, sheet)
}

// ========== Update ==========
func (h *SheetHandler) Update(c echo.Context) error {
	var sheet models.Sheet
	if err := database.DB.First(&sheet, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "SHEET_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	var p sheetPayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}
	p.norm()
	if errs := validateSheet(&p); errs != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "VALIDATION_ERROR", "fields": errs})
	}

	var dup int64
	if err := database.DB.Model(&models.Sheet{}).Where("name = ? AND id <> ?", p.Name, sheet.ID).Count(&dup).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if dup > 0 {
		return jsonError(c, http.StatusConflict, "SHEET_NAME_TAKEN")
	}

	sheet.Name = p.Name
	if err := database.DB.Save(&sheet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jsonError(c, http.StatusConflict, "SHEET_NAME_TAKEN")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_UPDATE_FAILED")
	}

	if err := sheetScope(database.DB).First(&sheet, "id = ?", sheet.ID).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	sheet.Sanitize()
	return c.JSON(http.StatusOK, sheet)
}

// ========== Delete ==========
func (h *SheetHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	var sheet models.Sheet
	if err := database.DB.First(&sheet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "SHEET_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}

	// Referential integrity is enforced here, not by cascade.
	var rooms int64
	if err := database.DB.Model(&models.Room{}).Where("sheet_id = ?", id).Count(&rooms).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	if rooms > 0 {
		return jsonError(c, http.StatusBadRequest, "SHEET_HAS_ROOMS")
	}

	if err := database.DB.Delete(&models.Sheet{}, "id = ?", id).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_DELETE_FAILED")
	}

	h.hub.Broadcast(hub.EventSheetDeleted, map[string]string{"sheetId": id})
	return c.JSON(http.StatusOK, map[string]string{"message": "Sheet deleted successfully"})
}

// ========== ValidateCode ==========
func (h *SheetHandler) ValidateCode(c echo.Context) error {
	var p struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "INVALID_PAYLOAD")
	}
	p.Code = strings.TrimSpace(p.Code)
	if p.Code == "" {
		return jsonError(c, http.StatusUnauthorized, "CODE_REQUIRED")
	}

	var sheet models.Sheet
	if err := database.DB.First(&sheet, "code = ?", p.Code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusUnauthorized, "INVALID_CODE")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	return c.JSON(http.StatusOK, map[string]string{"sheetId": sheet.ID})
}

// ========== Admin reads (codes included) ==========
func (h *SheetHandler) ListWithCodes(c echo.Context) error {
	var sheets []models.Sheet
	if err := sheetScope(database.DB).Order("created_at").Find(&sheets).Error; err != nil {
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	return c.JSON(http.StatusOK, sheets)
}

func (h *SheetHandler) GetWithCode(c echo.Context) error {
	var sheet models.Sheet
	if err := sheetScope(database.DB).First(&sheet, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, http.StatusNotFound, "SHEET_NOT_FOUND")
		}
		return jsonError(c, http.StatusInternalServerError, "DB_QUERY_FAILED")
	}
	return c.JSON(http.StatusOK, sheet)
}
