package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() *Config {
	return &Config{
		ImagePriceStandard:  2,
		ImagePricePremium:   5,
		GeminiModelStandard: "gemini-2.5-flash-image",
		GeminiModelPremium:  "gemini-2.5-pro-image",
		RedisHost:           "localhost",
		RedisPort:           "6379",
	}
}

func TestUnitCost(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 2, cfg.UnitCost("standard"))
	assert.Equal(t, 5, cfg.UnitCost("premium"))
	// 모르는 등급은 0 - 호출부 검증에서 걸린다
	assert.Equal(t, 0, cfg.UnitCost("ultra"))
	assert.Equal(t, 0, cfg.UnitCost(""))
}

func TestModelForQuality(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "gemini-2.5-pro-image", cfg.ModelForQuality("premium"))
	assert.Equal(t, "gemini-2.5-flash-image", cfg.ModelForQuality("standard"))
	assert.Equal(t, "gemini-2.5-flash-image", cfg.ModelForQuality(""))
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitKeys("a,b,c"))
	assert.Equal(t, []string{"a", "b"}, splitKeys(" a , , b "))
	assert.Nil(t, splitKeys(""))
}

func TestGetRedisAddr(t *testing.T) {
	assert.Equal(t, "localhost:6379", testConfig().GetRedisAddr())
}

func TestGetEnvDurationDefault(t *testing.T) {
	assert.Equal(t, 120*time.Second, getEnvDuration("NOPE_NOT_SET_XYZ", 120*time.Second))
}

func TestValidate(t *testing.T) {
	cfg := testConfig()
	cfg.SupabaseURL = "https://x.supabase.co"
	cfg.SupabaseServiceKey = "key"
	cfg.GeminiAPIKeys = []string{"k1"}
	assert.NoError(t, cfg.validate())

	cfg.GeminiAPIKeys = nil
	assert.Error(t, cfg.validate())
}
