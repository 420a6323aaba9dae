package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultJWTTTL            = "24h"
	defaultSignedURLExpires  = "60"
	defaultUploadDir         = "./data/uploads"
	defaultPreviewDir        = "./data/previews"
	defaultMaxUploadMB       = "200"
	defaultAllowedFileExt    = "pdf,ppt,pptx,doc,docx,xls,xlsx,mp4,mp3,png,jpg,jpeg,zip"
	defaultStorageBackend    = "local"
	defaultConvertTimeout    = "2m"
	defaultProbeTimeout      = "20s"
	defaultLoginWindow       = "10m"
	defaultLoginMaxAttempts  = "10"
	defaultPort              = "8080"
	defaultPublicBaseURL     = "http://localhost:8080"
)

// Config carries every runtime setting. Secrets are validated at startup:
// a missing signing secret is fatal, never a per-request error.
type Config struct {
	DatabaseURL string
	Port        string

	// Public base used when minting local signed download URLs.
	PublicBaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	SignedURLSecret  string
	SignedURLExpires time.Duration

	UploadDir      string
	PreviewDir     string
	MaxUploadBytes int64
	AllowedExts    []string

	// "local" or "s3"
	StorageBackend string
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string

	ConvertTimeout time.Duration
	ProbeTimeout   time.Duration

	LoginWindow      time.Duration
	LoginMaxAttempts int
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.Port = getEnv("PORT", defaultPort)
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", defaultPublicBaseURL), "/")

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.SignedURLSecret = strings.TrimSpace(os.Getenv("SIGNED_URL_SECRET"))
	if cfg.SignedURLSecret == "" {
		return nil, fmt.Errorf("SIGNED_URL_SECRET is required")
	}

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}

	expSecs, err := parseIntEnv("SIGNED_URL_EXPIRES_SECONDS", defaultSignedURLExpires)
	if err != nil {
		return nil, err
	}
	if expSecs <= 0 {
		return nil, fmt.Errorf("SIGNED_URL_EXPIRES_SECONDS must be > 0")
	}
	cfg.SignedURLExpires = time.Duration(expSecs) * time.Second

	cfg.UploadDir = getEnv("UPLOAD_DIR", defaultUploadDir)
	cfg.PreviewDir = getEnv("PREVIEW_DIR", defaultPreviewDir)

	maxMB, err := parseIntEnv("MAX_UPLOAD_MB", defaultMaxUploadMB)
	if err != nil {
		return nil, err
	}
	if maxMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be > 0")
	}
	cfg.MaxUploadBytes = int64(maxMB) * 1024 * 1024

	for _, ext := range strings.Split(getEnv("ALLOWED_FILE_EXT", defaultAllowedFileExt), ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			cfg.AllowedExts = append(cfg.AllowedExts, ext)
		}
	}
	if len(cfg.AllowedExts) == 0 {
		return nil, fmt.Errorf("ALLOWED_FILE_EXT must not be empty")
	}

	cfg.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", defaultStorageBackend))
	switch cfg.StorageBackend {
	case "local":
	case "s3":
		cfg.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
		cfg.S3Region = getEnv("S3_REGION", "auto")
		cfg.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
		cfg.S3AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
		cfg.S3SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
		if cfg.S3Bucket == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, fmt.Errorf("STORAGE_BACKEND=s3 requires S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY")
		}
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be one of: local, s3")
	}

	if cfg.ConvertTimeout, err = parseDurationEnv("CONVERT_TIMEOUT", defaultConvertTimeout); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = parseDurationEnv("PROBE_TIMEOUT", defaultProbeTimeout); err != nil {
		return nil, err
	}

	if cfg.LoginWindow, err = parseDurationEnv("LOGIN_WINDOW", defaultLoginWindow); err != nil {
		return nil, err
	}
	if cfg.LoginMaxAttempts, err = parseIntEnv("LOGIN_MAX_ATTEMPTS", defaultLoginMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.LoginMaxAttempts <= 0 {
		return nil, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be > 0")
	}

	return cfg, nil
}

func getEnv(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := getEnv(name, fallback)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", name)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := getEnv(name, fallback)
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}
