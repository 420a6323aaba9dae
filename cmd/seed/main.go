// Seed creates a default admin account and a couple of sample resources for
// local development. Safe to run repeatedly: existing rows are left alone.
package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"resourcehub/internal/config"
	"resourcehub/internal/database"
	"resourcehub/internal/domain/auth"
	"resourcehub/internal/domain/resource"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	admin := seedUser(db, "admin", envOr("SEED_ADMIN_PASSWORD", "admin123"), "Administrator", auth.RoleAdmin)
	teacher := seedUser(db, "teacher", envOr("SEED_TEACHER_PASSWORD", "teacher123"), "Demo Teacher", auth.RoleTeacher)

	seedResource(db, &resource.Resource{
		Title:      "Getting started guide",
		Abstract:   "Introductory reading for new members.",
		SourceType: resource.SourceLink,
		ExternalURL: "https://example.com/getting-started",
		Status:     resource.StatusPublished,
		OwnerID:    admin.ID,
		PublishedAt: ptr(time.Now()),
	})
	seedResource(db, &resource.Resource{
		Title:      "Course syllabus draft",
		Abstract:   "Work in progress, upload pending.",
		SourceType: resource.SourceUpload,
		Status:     resource.StatusDraft,
		OwnerID:    teacher.ID,
	})

	log.Println("seed complete")
}

func seedUser(db *gorm.DB, username, password, name string, role auth.UserRole) *auth.User {
	var existing auth.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		log.Printf("user %q already exists, skipping", username)
		return &existing
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	user := &auth.User{
		Username:     username,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		log.Fatalf("create user %q: %v", username, err)
	}
	log.Printf("created user %q role=%s", username, role)
	return user
}

func seedResource(db *gorm.DB, r *resource.Resource) {
	var count int64
	db.Model(&resource.Resource{}).Where("title = ?", r.Title).Count(&count)
	if count > 0 {
		log.Printf("resource %q already exists, skipping", r.Title)
		return
	}
	if err := db.Create(r).Error; err != nil {
		log.Fatalf("create resource %q: %v", r.Title, err)
	}
	log.Printf("created resource %q status=%s", r.Title, r.Status)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func ptr[T any](v T) *T { return &v }
