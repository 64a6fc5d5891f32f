package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mehdi-lakhzouri/rooming-mangement/config"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

var DB *gorm.DB

// Connect opens the postgres connection and migrates the schema.
// TranslateError makes unique-constraint violations surface as
// gorm.ErrDuplicatedKey, which the membership engine relies on to
// resolve write races the same way its pre-checks would.
func Connect(cfg *config.Config) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	DB = db
	return nil
}

// Migrate is shared with the test setup, which runs against sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Sheet{},
		&models.Room{},
		&models.User{},
		&models.RoomMember{},
	)
}
