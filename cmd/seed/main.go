// Seeds the database with the sample dataset: two dormitory sheets, five
// rooms and a handful of members.
package main

import (
	stdlog "log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mehdi-lakhzouri/rooming-mangement/config"
	"github.com/mehdi-lakhzouri/rooming-mangement/database"
	"github.com/mehdi-lakhzouri/rooming-mangement/logger"
	"github.com/mehdi-lakhzouri/rooming-mangement/models"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, "console", "rooming-seed")
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer log.Sync()

	if err := database.Connect(cfg); err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	db := database.DB

	sheetA := models.Sheet{Name: "Dormitory A", Code: "SDC-4376"}
	sheetB := models.Sheet{Name: "Dormitory B", Code: "SDC-7890"}
	for _, s := range []*models.Sheet{&sheetA, &sheetB} {
		if err := db.Create(s).Error; err != nil {
			log.Fatal("create sheet", zap.String("name", s.Name), zap.Error(err))
		}
	}
	log.Info("created sheets")

	maleA := models.Room{Name: "Room 1", Capacity: 2, Gender: models.GenderMale, SheetID: sheetA.ID}
	femaleA := models.Room{Name: "Room 2", Capacity: 6, Gender: models.GenderFemale, SheetID: sheetA.ID}
	rooms := []*models.Room{
		&maleA,
		&femaleA,
		{Name: "Room 3", Capacity: 4, Gender: models.GenderFemale, SheetID: sheetA.ID},
		{Name: "Room 1", Capacity: 4, Gender: models.GenderMale, SheetID: sheetB.ID},
		{Name: "Room 2", Capacity: 3, Gender: models.GenderMale, SheetID: sheetB.ID},
	}
	for _, r := range rooms {
		if err := db.Create(r).Error; err != nil {
			log.Fatal("create room", zap.String("name", r.Name), zap.Error(err))
		}
	}
	log.Info("created rooms", zap.Int("count", len(rooms)))

	john := models.User{Firstname: "John", Lastname: "Doe"}
	jane := models.User{Firstname: "Jane", Lastname: "Smith"}
	alice := models.User{Firstname: "Alice", Lastname: "Johnson"}
	bob := models.User{Firstname: "Bob", Lastname: "Wilson"}
	for _, u := range []*models.User{&john, &jane, &alice, &bob} {
		if err := db.Create(u).Error; err != nil {
			log.Fatal("create user", zap.Error(err))
		}
	}
	log.Info("created users")

	memberships := []models.RoomMember{
		{RoomID: femaleA.ID, UserID: jane.ID},
		{RoomID: femaleA.ID, UserID: alice.ID},
		{RoomID: maleA.ID, UserID: john.ID},
	}
	for i := range memberships {
		if err := db.Create(&memberships[i]).Error; err != nil {
			log.Fatal("create membership", zap.Error(err))
		}
	}
	log.Info("created memberships", zap.Int("count", len(memberships)))

	log.Info("database seeded")
}
