package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBaseURL string
	StorageBucket          string

	// Gemini API
	GeminiAPIKeys       []string
	GeminiModelStandard string
	GeminiModelPremium  string

	// Server
	Port string

	// Credit (품질 등급별 이미지당 크레딧)
	ImagePriceStandard int
	ImagePricePremium  int

	// Batch
	MaxVariants    int
	TaskTimeout    time.Duration
	SignedURLTTL   time.Duration
	ReplayCacheTTL time.Duration
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// Redis UseTLS 파싱
	useTLS := true // 기본값
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	globalConfig = &Config{
		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		// Supabase
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),
		StorageBucket:          getEnv("STORAGE_BUCKET", "attachments"),

		// Gemini API (콤마 구분 다중 키 지원)
		GeminiAPIKeys:       splitKeys(getEnv("GEMINI_API_KEYS", os.Getenv("GEMINI_API_KEY"))),
		GeminiModelStandard: getEnv("GEMINI_MODEL_STANDARD", "gemini-2.5-flash-image"),
		GeminiModelPremium:  getEnv("GEMINI_MODEL_PREMIUM", "gemini-2.5-pro-image"),

		// Server
		Port: getEnv("PORT", "8080"),

		// Credit
		ImagePriceStandard: getEnvInt("IMAGE_PRICE_STANDARD", 2),
		ImagePricePremium:  getEnvInt("IMAGE_PRICE_PREMIUM", 5),

		// Batch
		MaxVariants:    getEnvInt("MAX_VARIANTS", 4),
		TaskTimeout:    getEnvDuration("TASK_TIMEOUT", 120*time.Second),
		SignedURLTTL:   getEnvDuration("SIGNED_URL_TTL", 1*time.Hour),
		ReplayCacheTTL: getEnvDuration("REPLAY_CACHE_TTL", 24*time.Hour),
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	log.Printf("   Gemini: %s / %s (%d keys)", globalConfig.GeminiModelStandard, globalConfig.GeminiModelPremium, len(globalConfig.GeminiAPIKeys))
	log.Printf("   Credit: standard=%d premium=%d per image", globalConfig.ImagePriceStandard, globalConfig.ImagePricePremium)

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// SetConfigForTest - 테스트용 설정 주입
func SetConfigForTest(cfg *Config) {
	globalConfig = cfg
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if len(c.GeminiAPIKeys) == 0 {
		return fmt.Errorf("GEMINI_API_KEYS is required")
	}
	return nil
}

// UnitCost - 품질 등급별 이미지당 크레딧 반환 (모르는 등급이면 0)
func (c *Config) UnitCost(qualityClass string) int {
	switch qualityClass {
	case "standard":
		return c.ImagePriceStandard
	case "premium":
		return c.ImagePricePremium
	}
	return 0
}

// ModelForQuality - 품질 등급별 Gemini 모델명 반환
func (c *Config) ModelForQuality(qualityClass string) string {
	if qualityClass == "premium" {
		return c.GeminiModelPremium
	}
	return c.GeminiModelStandard
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt - 정수 환경변수 가져오기 (기본값 지원)
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration - Duration 환경변수 가져오기 (기본값 지원)
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitKeys - 콤마 구분 API 키 문자열 파싱
func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
