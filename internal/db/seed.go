package db

import (
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedCampuses = []string{"North", "South", "East", "Main", "Medical"}
	seedHobbies  = []string{"chess", "hiking", "football", "photography", "cooking", "gaming", "music", "reading"}
)

// SeedTestData resets the database and populates it with demo profiles and likes.
//
// Behavior:
//  1. Clears reports, chat requests, active chats, swipes and users.
//  2. Creates 20 profiles (10 male, 10 female) with ids 1..20.
//  3. Generates likes across genders; every 3rd pair is made mutual.
//
// Works on MySQL, PostgreSQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	gofakeit.Seed(time.Now().UnixNano())

	// --- Fresh start ---
	for _, table := range []string{"reports", "chat_requests", "active_chats", "swipes", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if db.Dialector.Name() == "sqlite" {
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('chat_requests', 'reports')")
	}

	log.Println("Cleared existing data")

	// --- Seed profiles (10 male, 10 female) ---
	users := make([]User, 0, 20)
	for i := 1; i <= 20; i++ {
		gender := GenderMale
		if i > 10 {
			gender = GenderFemale
		}
		users = append(users, User{
			ID:         uint64(i),
			Username:   gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
			Name:       gofakeit.FirstName(),
			Gender:     gender,
			Campus:     gofakeit.RandomString(seedCampuses),
			Bio:        gofakeit.Sentence(10),
			Hobbies:    gofakeit.RandomString(seedHobbies) + ", " + gofakeit.RandomString(seedHobbies),
			Preference: PreferenceBoth,
		})
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Println("Seeded 20 users.")

	// --- Seed likes ---
	counter := 0
	for likerID := 1; likerID <= 20; likerID++ {
		for j := 0; j < 8; j++ {
			likedID := gofakeit.Number(1, 20)
			if likedID == likerID || users[likerID-1].Gender == users[likedID-1].Gender {
				continue
			}

			swipes := []Swipe{{LikerID: uint64(likerID), LikedID: uint64(likedID)}}
			if counter%3 == 0 {
				swipes = append(swipes, Swipe{LikerID: uint64(likedID), LikedID: uint64(likerID)})
			}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&swipes).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}
			counter++
		}
	}
	log.Printf("Seeded %d like pairs.", counter)

	return nil
}

// SeedMinimalTestData inserts a small deterministic dataset:
//   - 1 (Male), 2 (Female), 3 (Female)
//   - 1 ↔ 2 mutual like, 3 → 1 one-way like
func SeedMinimalTestData(db *gorm.DB) error {
	for _, table := range []string{"chat_requests", "active_chats", "swipes", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	users := []User{
		{ID: 1, Username: "user1", Name: "Abel", Gender: GenderMale, Preference: PreferenceBoth},
		{ID: 2, Username: "user2", Name: "Betty", Gender: GenderFemale, Preference: PreferenceBoth},
		{ID: 3, Username: "user3", Name: "Cara", Gender: GenderFemale, Preference: PreferenceBoth},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	swipes := []Swipe{
		{LikerID: 1, LikedID: 2},
		{LikerID: 2, LikedID: 1},
		{LikerID: 3, LikedID: 1},
	}
	return db.Create(&swipes).Error
}
