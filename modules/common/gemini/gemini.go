package gemini

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"mirage-studio-server/modules/common/config"
	"mirage-studio-server/modules/common/fallback"
)

// GenerateInput - 이미지 생성 요청
type GenerateInput struct {
	Model           string
	Prompt          string
	AspectRatio     string
	ReferenceImages [][]byte // PNG 바이너리 (없을 수 있음)
	MaskImage       []byte   // inpaint 마스크 (modify 전용, optional)
}

// GeneratedImage - 생성 결과
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

type Client struct {
	apiKeys []string
}

// NewClient - Gemini 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()
	return &Client{
		apiKeys: cfg.GeminiAPIKeys,
	}
}

// Generate - Gemini API로 이미지 1장 생성
func (c *Client) Generate(ctx context.Context, input GenerateInput) (*GeneratedImage, error) {
	// aspect-ratio 기본값 처리
	aspectRatio := input.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}

	log.Printf("🎨 Calling Gemini API (model: %s, refs: %d, mask: %v, aspect-ratio: %s)",
		input.Model, len(input.ReferenceImages), input.MaskImage != nil, aspectRatio)

	var parts []*genai.Part

	for _, ref := range input.ReferenceImages {
		if len(ref) == 0 {
			// 빈 슬롯은 투명 픽셀로 채워 프롬프트의 참조 인덱스를 유지
			ref = fallback.PlaceholderBytes()
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: "image/png",
				Data:     ref,
			},
		})
	}

	if input.MaskImage != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: "image/png",
				Data:     input.MaskImage,
			},
		})
	}

	parts = append(parts, genai.NewPartFromText(input.Prompt))

	content := &genai.Content{Parts: parts}

	result, err := generateWithRetry(ctx, c.apiKeys, input.Model, []*genai.Content{content},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{
				AspectRatio: aspectRatio,
			},
		})
	if err != nil {
		return nil, err
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			// 이미지는 InlineData로 반환됨
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ Received image from Gemini: %d bytes", len(part.InlineData.Data))
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &GeneratedImage{Data: part.InlineData.Data, MIMEType: mime}, nil
			}
		}
	}

	return nil, fmt.Errorf("no image data in response")
}
