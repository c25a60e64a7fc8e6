package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AppConfig is read from the environment once at startup. Deployments differ
// only in API_BASE_URL and LOCALE.
type AppConfig struct {
	Port           string        `validate:"required,numeric"`
	Env            string        `validate:"omitempty,oneof=development production test"`
	APIBaseURL     string        `validate:"required,url"`
	Locale         string        `validate:"required,oneof=tr en"`
	ImageProxy     bool
	MaxUploadBytes int64         `validate:"gt=0"`
	AnalyzeTimeout time.Duration `validate:"gt=0"`
	StatusTimeout  time.Duration `validate:"gt=0"`
	SessionTTL     time.Duration `validate:"gte=1m"`
	SessionSecret  string        `validate:"required,min=16"`
	CookieSecure   bool
	RedisAddress   string        `validate:"required,hostname_port"`
	RedisPassword  string
	RedisDB        int           `validate:"gte=0"`
	RateLimit      float64       `validate:"gt=0"`
	RateBurst      int           `validate:"gt=0"`
}

func NewValidator() *validator.Validate {
	return validator.New()
}

// LoadAppConfig reads the environment, applies defaults and validates the result.
func LoadAppConfig(v *validator.Validate) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:          getEnv("APP_PORT", "3000"),
		Env:           getEnv("APP_ENV", "development"),
		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		Locale:        strings.ToLower(getEnv("LOCALE", "tr")),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.ImageProxy, err = getBool("IMAGE_PROXY", false); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE", cfg.Env == "production"); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 10*1024*1024); err != nil {
		return nil, err
	}
	if cfg.AnalyzeTimeout, err = getDuration("ANALYZE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatusTimeout, err = getDuration("STATUS_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	redisDB, err := getInt64("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisDB = int(redisDB)
	if cfg.RateLimit, err = getFloat("RATE_LIMIT", 2); err != nil {
		return nil, err
	}
	burst, err := getInt64("RATE_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.RateBurst = int(burst)

	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, defaultVal int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
