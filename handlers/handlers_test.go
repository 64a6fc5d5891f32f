package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/hub"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
	"github.com/mehdi-lakhzouri/rooming-mangement/routes"
)

func setupServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	e := echo.New()
	routes.Register(e, hub.New(zap.NewNop()), zap.NewNop())
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createSheet(t *testing.T, e *echo.Echo, name string) models.Sheet {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/sheets", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Sheet](t, rec)
}

func createRoom(t *testing.T, e *echo.Echo, sheetID, name, gender string, capacity int) models.Room {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/rooms", map[string]any{
		"name": name, "capacity": capacity, "gender": gender, "sheetId": sheetID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Room](t, rec)
}

func joinRoom(t *testing.T, e *echo.Echo, roomID, firstname, lastname string) models.Room {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/rooms/"+roomID+"/join", map[string]string{
		"firstname": firstname, "lastname": lastname,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Room](t, rec)
}

func TestSheetLifecycle(t *testing.T) {
	e := setupServer(t)

	sheet := createSheet(t, e, "Dormitory A")
	assert.NotEmpty(t, sheet.ID)
	assert.Regexp(t, `^SDC-\d{4}$`, sheet.Code)

	// Duplicate name is a conflict.
	rec := doJSON(t, e, http.MethodPost, "/sheets", map[string]string{"name": "Dormitory A"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Public list never exposes codes.
	rec = doJSON(t, e, http.MethodGet, "/sheets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]map[string]any](t, rec)
	require.Len(t, listed, 1)
	assert.NotContains(t, listed[0], "code")

	// Admin list does.
	rec = doJSON(t, e, http.MethodGet, "/sheets/admin/with-codes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	admin := decode[[]models.Sheet](t, rec)
	require.Len(t, admin, 1)
	assert.Equal(t, sheet.Code, admin[0].Code)

	// Access code resolves to the sheet id.
	rec = doJSON(t, e, http.MethodPost, "/sheets/validate-code", map[string]string{"code": sheet.Code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sheet.ID, decode[map[string]string](t, rec)["sheetId"])

	rec = doJSON(t, e, http.MethodPost, "/sheets/validate-code", map[string]string{"code": "SDC-0000x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Rename.
	rec = doJSON(t, e, http.MethodPut, "/sheets/"+sheet.ID, map[string]string{"name": "Dormitory Z"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dormitory Z", decode[models.Sheet](t, rec).Name)

	// A sheet with rooms cannot be deleted.
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	rec = doJSON(t, e, http.MethodDelete, "/sheets/"+sheet.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SHEET_HAS_ROOMS", decode[map[string]string](t, rec)["error"])

	rec = doJSON(t, e, http.MethodDelete, "/rooms/"+room.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodDelete, "/sheets/"+sheet.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSheetCreateReportsStoreFailure(t *testing.T) {
	e := setupServer(t)

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// The duplicate-name pre-check is the first store access; its failure
	// must surface as a query error, not fall through to the insert.
	rec := doJSON(t, e, http.MethodPost, "/sheets", map[string]string{"name": "Dormitory A"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DB_QUERY_FAILED", decode[map[string]string](t, rec)["error"])
}

func TestRoomValidation(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")

	rec := doJSON(t, e, http.MethodPost, "/rooms", map[string]any{
		"name": "Room 1", "capacity": 0, "gender": models.GenderMale, "sheetId": sheet.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/rooms", map[string]any{
		"name": "Room 1", "capacity": 2, "gender": "OTHER", "sheetId": sheet.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/rooms", map[string]any{
		"name": "Room 1", "capacity": 2, "gender": models.GenderMale, "sheetId": "missing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SHEET_NOT_FOUND", decode[map[string]string](t, rec)["error"])

	createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)

	// Same name, same gender, same sheet: conflict.
	rec = doJSON(t, e, http.MethodPost, "/rooms", map[string]any{
		"name": "Room 1", "capacity": 4, "gender": models.GenderMale, "sheetId": sheet.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Same name but other gender is allowed.
	createRoom(t, e, sheet.ID, "Room 1", models.GenderFemale, 2)
}

func TestJoinFlow(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)

	got := joinRoom(t, e, room.ID, "John", "Doe")
	require.Len(t, got.Members, 1)
	assert.False(t, got.IsFull)
	require.NotNil(t, got.Members[0].User)
	assert.Equal(t, "John", got.Members[0].User.Firstname)

	got = joinRoom(t, e, room.ID, "Mike", "Lee")
	require.Len(t, got.Members, 2)
	assert.True(t, got.IsFull)

	rec := doJSON(t, e, http.MethodPost, "/rooms/"+room.ID+"/join", map[string]string{
		"firstname": "Sam", "lastname": "King",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ROOM_FULL", decode[map[string]string](t, rec)["error"])

	// Joining the hydrated sheet never leaks the access code.
	rec = doJSON(t, e, http.MethodGet, "/rooms/"+room.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roomDoc := decode[map[string]any](t, rec)
	sheetDoc, ok := roomDoc["sheet"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, sheetDoc, "code")

	// Remove one member; the room opens up again.
	memberID := got.Members[1].ID
	rec = doJSON(t, e, http.MethodDelete, "/rooms/"+room.ID+"/members/"+memberID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/rooms/"+room.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decode[models.Room](t, rec)
	assert.Len(t, final.Members, 1)
	assert.False(t, final.IsFull)
}

func TestJoinValidatesNames(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)

	rec := doJSON(t, e, http.MethodPost, "/rooms/"+room.ID+"/join", map[string]string{
		"firstname": "J", "lastname": "Doe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/rooms/"+room.ID+"/join", map[string]string{
		"firstname": "John3", "lastname": "Doe",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoveEndpoint(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	roomA := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	roomB := createRoom(t, e, sheet.ID, "Room 2", models.GenderMale, 3)
	female := createRoom(t, e, sheet.ID, "Room 3", models.GenderFemale, 3)

	joinRoom(t, e, roomA.ID, "John", "Doe")
	joinRoom(t, e, roomB.ID, "Bob", "Wilson")
	got := joinRoom(t, e, roomA.ID, "Mike", "Lee")
	require.True(t, got.IsFull)

	var memberID string
	for _, m := range got.Members {
		if m.User != nil && m.User.Firstname == "Mike" {
			memberID = m.ID
		}
	}
	require.NotEmpty(t, memberID)

	// Only same-sheet, same-gender, non-full rooms are offered.
	rec := doJSON(t, e, http.MethodGet, "/rooms/members/"+memberID+"/available-rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	available := decode[[]models.Room](t, rec)
	require.Len(t, available, 1)
	assert.Equal(t, roomB.ID, available[0].ID)

	rec = doJSON(t, e, http.MethodPost, "/rooms/members/"+memberID+"/move", map[string]string{
		"destinationRoomId": female.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "GENDER_MISMATCH", decode[map[string]string](t, rec)["error"])

	rec = doJSON(t, e, http.MethodPost, "/rooms/members/"+memberID+"/move", map[string]string{
		"destinationRoomId": roomB.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Member          models.RoomMember `json:"member"`
		SourceRoom      models.Room       `json:"sourceRoom"`
		DestinationRoom models.Room       `json:"destinationRoom"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, roomB.ID, result.Member.RoomID)
	assert.Len(t, result.SourceRoom.Members, 1)
	assert.False(t, result.SourceRoom.IsFull)
	assert.Len(t, result.DestinationRoom.Members, 2)
}

func TestMarkFullEndpoint(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 4)

	rec := doJSON(t, e, http.MethodPatch, "/rooms/"+room.ID+"/mark-full", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Room](t, rec).IsFull)

	rec = doJSON(t, e, http.MethodPatch, "/rooms/missing/mark-full", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomUpdateRecomputesFullFlag(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	joinRoom(t, e, room.ID, "John", "Doe")
	got := joinRoom(t, e, room.ID, "Mike", "Lee")
	require.True(t, got.IsFull)

	// Raising the capacity reopens the room.
	rec := doJSON(t, e, http.MethodPatch, "/rooms/"+room.ID, map[string]any{"capacity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Room](t, rec)
	assert.Equal(t, 3, updated.Capacity)
	assert.False(t, updated.IsFull)

	// Shrinking it back fills it again.
	rec = doJSON(t, e, http.MethodPatch, "/rooms/"+room.ID, map[string]any{"capacity": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Room](t, rec).IsFull)
}

func TestRoomDeleteGuard(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	got := joinRoom(t, e, room.ID, "John", "Doe")

	rec := doJSON(t, e, http.MethodDelete, "/rooms/"+room.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ROOM_HAS_MEMBERS", decode[map[string]string](t, rec)["error"])

	rec = doJSON(t, e, http.MethodDelete, "/rooms/"+room.ID+"/members/"+got.Members[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodDelete, "/rooms/"+room.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalytics(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	male := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	createRoom(t, e, sheet.ID, "Room 2", models.GenderFemale, 6)

	joinRoom(t, e, male.ID, "John", "Doe")
	joinRoom(t, e, male.ID, "Mike", "Lee")

	rec := doJSON(t, e, http.MethodGet, "/members/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, stats["totalMembers"])
	assert.EqualValues(t, 2, stats["totalRooms"])
	assert.EqualValues(t, 8, stats["totalCapacity"])
	assert.InDelta(t, 25.0, stats["occupancyRate"], 0.001)

	byGender, ok := stats["roomsByGender"].([]any)
	require.True(t, ok)
	assert.Len(t, byGender, 2)
}

func TestMembersList(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	joinRoom(t, e, room.ID, "John", "Doe")

	rec := doJSON(t, e, http.MethodGet, "/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decode[[]models.RoomMember](t, rec)
	require.Len(t, members, 1)
	require.NotNil(t, members[0].User)
	assert.Equal(t, "John", members[0].User.Firstname)
	require.NotNil(t, members[0].Room)
	require.NotNil(t, members[0].Room.Sheet)
	assert.Empty(t, members[0].Room.Sheet.Code)
}

func TestUserDeleteGuard(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	room := createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	got := joinRoom(t, e, room.ID, "John", "Doe")
	userID := got.Members[0].UserID

	rec := doJSON(t, e, http.MethodDelete, "/users/"+userID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "USER_HAS_MEMBERSHIPS", decode[map[string]string](t, rec)["error"])

	rec = doJSON(t, e, http.MethodDelete, "/rooms/"+room.ID+"/members/"+got.Members[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, "/users/"+userID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/users/"+userID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	e := setupServer(t)
	rec := doJSON(t, e, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestRoomListGenderFilter(t *testing.T) {
	e := setupServer(t)
	sheet := createSheet(t, e, "Dormitory A")
	createRoom(t, e, sheet.ID, "Room 1", models.GenderMale, 2)
	createRoom(t, e, sheet.ID, "Room 2", models.GenderFemale, 2)

	rec := doJSON(t, e, http.MethodGet, fmt.Sprintf("/rooms?gender=%s", models.GenderFemale), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decode[[]models.Room](t, rec)
	require.Len(t, rooms, 1)
	assert.Equal(t, models.GenderFemale, rooms[0].Gender)

	rec = doJSON(t, e, http.MethodGet, "/rooms?gender=OTHER", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
