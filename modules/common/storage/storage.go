package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"mirage-studio-server/modules/common/config"
)

type Client struct {
	httpClient *http.Client
}

// NewClient - Storage 클라이언트 생성
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// GeneratedPath - 생성 이미지 저장 경로 생성
func GeneratedPath(memberID, ext string) string {
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	randomID := rand.Intn(999999)
	return fmt.Sprintf("generated-images/user-%s/generated_%d_%d.%s", memberID, timestamp, randomID, ext)
}

// Upload - Supabase Storage에 바이너리 업로드
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	cfg := config.GetConfig()

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", cfg.SupabaseURL, cfg.StorageBucket, path)
	log.Printf("📤 Uploading to storage: %s (%d bytes)", path, len(data))

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("✅ Uploaded successfully: %s", path)
	return nil
}

// Download - Storage에서 파일 다운로드
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	cfg := config.GetConfig()

	fullURL := cfg.SupabaseStorageBaseURL + path
	log.Printf("📥 Downloading from storage: %s", fullURL)

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}

	log.Printf("✅ Downloaded successfully: %d bytes", len(data))
	return data, nil
}

// SignedURL - 만료 시간이 있는 서명 URL 발급
func (c *Client) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	cfg := config.GetConfig()

	signURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", cfg.SupabaseURL, cfg.StorageBucket, path)

	payload, err := json.Marshal(map[string]interface{}{
		"expiresIn": int(ttl.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", signURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create sign request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sign failed with status %d: %s", resp.StatusCode, string(body))
	}

	var signResp struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signResp); err != nil {
		return "", fmt.Errorf("failed to parse sign response: %w", err)
	}

	if signResp.SignedURL == "" {
		return "", fmt.Errorf("empty signed url in response")
	}

	return cfg.SupabaseURL + "/storage/v1" + signResp.SignedURL, nil
}
