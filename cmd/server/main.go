package main

import (
	stdlog "log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mehdi-lakhzouri/rooming-mangement/config"
	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/hub"
	"github.com/mehdi-lakhzouri/rooming-mangement/logger"
	"github.com/mehdi-lakhzouri/rooming-mangement/routes"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "rooming-api")
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer log.Sync()

	if err := database.Connect(cfg); err != nil {
		log.Fatal("connect database", zap.Error(err))
	}

	h := hub.New(log.Named("hub"))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowCredentials: true,
	}))

	routes.Register(e, h, log)

	addr := ":" + cfg.AppPort
	log.Info("server listening", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
