package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"resourcehub/internal/audit"
	"resourcehub/internal/config"
	"resourcehub/internal/database"
	"resourcehub/internal/domain/auth"
	"resourcehub/internal/domain/files"
	"resourcehub/internal/domain/resource"
	"resourcehub/internal/middleware"
	"resourcehub/internal/pkg/jwt"
	"resourcehub/internal/pkg/ratelimit"
	"resourcehub/internal/pkg/signer"
	"resourcehub/internal/preview"
	"resourcehub/internal/storage"
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

	coversDir := filepath.Join(cfg.UploadDir, "covers")
	for _, dir := range []string{cfg.UploadDir, cfg.PreviewDir, coversDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	urlSigner := signer.New(cfg.SignedURLSecret)

	var backend storage.Backend
	backendKind := storage.KindLocal
	switch cfg.StorageBackend {
	case "s3":
		backendKind = storage.KindS3
		backend, err = storage.NewS3Backend(context.Background(), storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, cfg.SignedURLExpires)
	default:
		backend, err = storage.NewLocalBackend(cfg.UploadDir, urlSigner,
			cfg.PublicBaseURL, int64(cfg.SignedURLExpires.Seconds()))
	}
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	previews, err := preview.NewService(backend,
		preview.NewSofficeConverter(cfg.ConvertTimeout), cfg.PreviewDir)
	if err != nil {
		log.Fatalf("preview: %v", err)
	}
	prober := preview.NewFFProbeProber(cfg.ProbeTimeout)

	jwtService := jwt.New(cfg.JWTSecret, cfg.JWTTTL)
	auditRecorder := audit.NewRecorder(db)
	loginAttempts := ratelimit.NewMemoryStore(cfg.LoginWindow, cfg.LoginMaxAttempts)

	userRepo := auth.NewRepository(db)
	authService := auth.NewService(userRepo, jwtService, loginAttempts)
	authHandler := auth.NewHandler(authService)

	resourceRepo := resource.NewRepository(db)
	resourceService := resource.NewService(resourceRepo, backend, previews, prober,
		auditRecorder, cfg.MaxUploadBytes, cfg.AllowedExts, cfg.SignedURLExpires, coversDir)
	resourceHandler := resource.NewHandler(resourceService)

	filesHandler := files.NewHandler(resourceRepo, urlSigner,
		cfg.UploadDir, coversDir, backendKind)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	api := r.Group("/api/v1")
	public := api.Group("")
	public.Use(middleware.OptionalAuth(jwtService))
	protected := api.Group("")
	protected.Use(middleware.RequireAuth(jwtService))

	auth.RegisterRoutes(public, protected, authHandler)
	resource.RegisterRoutes(public, protected, resourceHandler)
	files.RegisterRoutes(public, filesHandler)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Printf("listening on :%s storage=%s", cfg.Port, cfg.StorageBackend)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
