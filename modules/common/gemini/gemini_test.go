package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestGenerateContentConfigCarriesAspectRatio(t *testing.T) {
	// Generate가 조립하는 설정 형태 - ImageConfig가 없는 SDK 버전으로 내려가면 여기서 깨진다
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "16:9",
		},
	}
	assert.Equal(t, "16:9", cfg.ImageConfig.AspectRatio)
}

func TestIs429Error(t *testing.T) {
	assert.True(t, is429Error(errors.New("googleapi: Error 429: Resource exhausted")))
	assert.True(t, is429Error(errors.New("Rate Limit exceeded")))
	assert.True(t, is429Error(errors.New("quota exceeded for model")))
	assert.False(t, is429Error(errors.New("googleapi: Error 500: internal")))
	assert.False(t, is429Error(nil))
}
