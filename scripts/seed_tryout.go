// Seed utility: creates a sample tryout with every question shape, including
// a shared passage group. Run separately from the server:
//
//	go run scripts/seed_tryout.go
package main

import (
	"encoding/json"
	"log"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/model"
	"tryout_backend/pkg/database"

	"golang.org/x/crypto/bcrypt"
)

func raw(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("marshal seed value: %v", err)
	}
	return b
}

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	var count int64
	db.Model(&model.Tryout{}).Count(&count)
	if count > 0 {
		log.Println("tryouts already present, nothing to seed")
		return
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("latihan"), bcrypt.DefaultCost)
	now := time.Now()
	end := now.Add(30 * 24 * time.Hour)

	tryout := &model.Tryout{
		Name:         "Tryout UTBK Simulasi 1",
		Description:  "Simulasi dua subtes dengan semua bentuk soal.",
		ReleaseAt:    now,
		StartAt:      now,
		EndAt:        &end,
		IsActive:     true,
		PasswordHash: string(hash),
		AccessMode:   model.AccessScheduled,
		Sections: []model.TryoutSection{
			{Subtes: "pu", Name: "Penalaran Umum", Order: 1, DurationMinutes: 30},
			{Subtes: "ppu", Name: "Pengetahuan dan Pemahaman Umum", Order: 2, DurationMinutes: 25},
		},
	}
	if err := db.Create(tryout).Error; err != nil {
		log.Fatalf("create tryout: %v", err)
	}

	passage := "Hutan hujan tropis menyimpan lebih dari separuh spesies darat dunia, " +
		"meski hanya menutupi enam persen permukaan bumi."

	questions := []model.Question{
		{
			TryoutID:     tryout.ID,
			Subtes:       "pu",
			Number:       1,
			QuestionType: model.SingleChoice,
			Prompt:       "Berdasarkan bacaan, berapa persen permukaan bumi yang ditutupi hutan hujan tropis?",
			Passage:      passage,
			PassageGroup: "pu-hutan-1",
			Options:      raw([]string{"4%", "6%", "16%", "60%"}),
			AnswerKey:    raw(1),
			Explanation:  "Disebutkan eksplisit pada kalimat kedua bacaan.",
			Difficulty:   "easy",
			Weight:       2,
		},
		{
			TryoutID:     tryout.ID,
			Subtes:       "pu",
			Number:       2,
			QuestionType: model.MultiChoice,
			Prompt:       "Pernyataan mana saja yang didukung bacaan?",
			Passage:      passage,
			PassageGroup: "pu-hutan-1",
			Options: raw([]string{
				"Hutan hujan kaya spesies",
				"Hutan hujan menutupi sebagian besar bumi",
				"Lebih dari separuh spesies darat hidup di hutan hujan",
				"Hutan hujan hanya ada di Asia",
			}),
			AnswerKey:   raw([]int{0, 2}),
			Explanation: "Hanya pernyataan pertama dan ketiga yang sesuai bacaan.",
			Difficulty:  "medium",
			Weight:      2,
		},
		{
			TryoutID:     tryout.ID,
			Subtes:       "ppu",
			Number:       1,
			QuestionType: model.FreeText,
			Prompt:       "Sebutkan ibu kota provinsi Jawa Timur.",
			AnswerKey:    raw("Surabaya"),
			Explanation:  "Jawaban dibandingkan tanpa memperhatikan kapitalisasi.",
			Difficulty:   "easy",
			Weight:       2,
		},
		{
			TryoutID:     tryout.ID,
			Subtes:       "ppu",
			Number:       2,
			QuestionType: model.StatementGrid,
			Prompt:       "Tentukan benar/salah untuk setiap pernyataan.",
			Options: raw([]string{
				"Air mendidih pada 100 derajat Celsius di permukaan laut",
				"Bumi mengelilingi bulan",
				"Fotosintesis menghasilkan oksigen",
			}),
			AnswerKey:   raw([]bool{true, false, true}),
			Explanation: "Pernyataan kedua terbalik: bulan mengelilingi bumi.",
			Difficulty:  "hard",
			Weight:      3,
		},
	}

	for i := range questions {
		if err := db.Create(&questions[i]).Error; err != nil {
			log.Fatalf("create question %d: %v", i, err)
		}
	}

	log.Printf("seeded tryout %d with %d questions (password: latihan)", tryout.ID, len(questions))
}
