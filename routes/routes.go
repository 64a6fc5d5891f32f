package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/handlers"
	"github.com/mehdi-lakhzouri/rooming-mangement/hub"
	"github.com/mehdi-lakhzouri/rooming-mangement/membership"
)

// Register wires all HTTP routes.
func Register(e *echo.Echo, h *hub.Hub, log *zap.Logger) {
	engine := membership.NewEngine(database.DB, h, log.Named("membership"))

	sheets := handlers.NewSheetHandler(h, log)
	rooms := handlers.NewRoomHandler(engine, h, log)
	members := handlers.NewMemberHandler(log)
	users := handlers.NewUserHandler(log)

	e.GET("/healthz", handlers.Health)
	e.GET("/ws", h.Handle)

	// ===== Sheets =====
	e.GET("/sheets", sheets.List)
	e.POST("/sheets", sheets.Create)
	e.POST("/sheets/validate-code", sheets.ValidateCode)
	e.GET("/sheets/admin/with-codes", sheets.ListWithCodes)
	e.GET("/sheets/admin/:id/with-code", sheets.GetWithCode)
	e.GET("/sheets/:id", sheets.Get)
	e.PUT("/sheets/:id", sheets.Update)
	e.DELETE("/sheets/:id", sheets.Delete)

	// ===== Rooms =====
	e.GET("/rooms", rooms.List)
	e.POST("/rooms", rooms.Create)
	e.POST("/rooms/members/:memberId/move", rooms.MoveMember)
	e.GET("/rooms/members/:memberId/available-rooms", rooms.AvailableRooms)
	e.GET("/rooms/:id", rooms.Get)
	e.PATCH("/rooms/:id", rooms.Update)
	e.DELETE("/rooms/:id", rooms.Delete)
	e.POST("/rooms/:id/join", rooms.Join)
	e.GET("/rooms/:id/members", rooms.Members)
	e.PATCH("/rooms/:id/mark-full", rooms.MarkFull)
	e.DELETE("/rooms/:roomId/members/:memberId", rooms.RemoveMember)

	// ===== Members =====
	e.GET("/members", members.List)
	e.GET("/members/analytics", members.Analytics)

	// ===== Users =====
	e.GET("/users", users.List)
	e.GET("/users/:id", users.Get)
	e.DELETE("/users/:id", users.Delete)
}
