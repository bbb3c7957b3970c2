package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"mirage-studio-server/modules/common/config"
	"mirage-studio-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// PlaceholderFields - placeholder 행들의 공통 필드
type PlaceholderFields struct {
	BatchToken   string
	QualityClass string
	Prompt       string
}

// Renditions - 2차 렌디션 경로 (best-effort, 없을 수 있음)
type Renditions struct {
	PreviewPath string
	ThumbPath   string
}

// CreatePlaceholders - N개의 placeholder 행을 한 번의 insert로 생성
// 정확히 N개가 만들어지지 않으면 부분 생성분을 지우고 에러 반환.
// 호출자는 짧은 목록으로 진행하면 안 된다 (이후 정산이 len == n을 가정).
func (c *Client) CreatePlaceholders(ctx context.Context, memberID string, n int, shared PlaceholderFields) ([]int64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("placeholder count must be positive, got %d", n)
	}

	log.Printf("💾 Creating %d placeholder rows: Member=%s, Batch=%s", n, memberID, shared.BatchToken)

	rows := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]interface{}{
			"member_id":     memberID,
			"batch_token":   shared.BatchToken,
			"attach_status": model.AttachStatusPlaceholder,
			"quality_class": shared.QualityClass,
			"prompt":        shared.Prompt,
		})
	}

	data, _, err := c.supabase.From("mirage_attach").
		Insert(rows, false, "", "representation", "").
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to insert placeholder rows: %w", err)
	}

	var attaches []model.Attach
	if err := json.Unmarshal(data, &attaches); err != nil {
		return nil, fmt.Errorf("failed to parse placeholder response: %w", err)
	}

	ids := make([]int64, 0, len(attaches))
	for _, a := range attaches {
		ids = append(ids, a.AttachID)
	}

	if len(ids) != n {
		log.Printf("❌ Short placeholder insert: wanted %d, got %d - rolling back", n, len(ids))
		if removeErr := c.RemoveAttaches(ctx, ids); removeErr != nil {
			log.Printf("⚠️  Failed to remove partial placeholder rows: %v", removeErr)
		}
		return nil, fmt.Errorf("placeholder insert returned %d rows, wanted %d", len(ids), n)
	}

	log.Printf("✅ Placeholders created: %v", ids)
	return ids, nil
}

// FinalizeAttach - placeholder를 finalized로 전환
// renditions가 nil이면 최소 필드(primary 경로)만 기록한다 (재시도 경로).
func (c *Client) FinalizeAttach(ctx context.Context, attachID int64, assetPath string, fileSize int64, renditions *Renditions) error {
	log.Printf("📝 Finalizing attach %d: %s", attachID, assetPath)

	updateData := map[string]interface{}{
		"attach_status":    model.AttachStatusFinalized,
		"attach_file_path": assetPath,
		"attach_file_size": fileSize,
		"attach_file_type": "image/png",
		"finalized_at":     "now()",
	}

	if renditions != nil {
		if renditions.PreviewPath != "" {
			updateData["preview_path"] = renditions.PreviewPath
		}
		if renditions.ThumbPath != "" {
			updateData["thumb_path"] = renditions.ThumbPath
		}
	}

	_, _, err := c.supabase.From("mirage_attach").
		Update(updateData, "", "").
		Eq("attach_id", fmt.Sprintf("%d", attachID)).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to finalize attach %d: %w", attachID, err)
	}

	log.Printf("✅ Attach %d finalized", attachID)
	return nil
}

// RemoveAttaches - 실패한 태스크의 행 삭제 (응답 반환 전에 호출돼야 함)
func (c *Client) RemoveAttaches(ctx context.Context, attachIDs []int64) error {
	if len(attachIDs) == 0 {
		return nil
	}

	log.Printf("🗑️  Removing %d attach rows: %v", len(attachIDs), attachIDs)

	idStrs := make([]string, 0, len(attachIDs))
	for _, id := range attachIDs {
		idStrs = append(idStrs, fmt.Sprintf("%d", id))
	}

	_, _, err := c.supabase.From("mirage_attach").
		Delete("", "").
		In("attach_id", idStrs).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to remove attach rows: %w", err)
	}

	log.Printf("✅ Removed attach rows: %v", attachIDs)
	return nil
}

// FetchAttachesByBatchToken - 같은 배치 토큰의 행 조회 (중복 요청 재생용)
func (c *Client) FetchAttachesByBatchToken(ctx context.Context, batchToken string) ([]model.Attach, error) {
	log.Printf("🔍 Fetching attaches for batch token: %s", batchToken)

	var attaches []model.Attach

	data, _, err := c.supabase.From("mirage_attach").
		Select("*", "exact", false).
		Eq("batch_token", batchToken).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query mirage_attach: %w", err)
	}

	if err := json.Unmarshal(data, &attaches); err != nil {
		return nil, fmt.Errorf("failed to parse attach response: %w", err)
	}

	log.Printf("✅ Found %d attaches for batch %s", len(attaches), batchToken)
	return attaches, nil
}

// FetchAttachInfo - attach 단건 조회
func (c *Client) FetchAttachInfo(ctx context.Context, attachID int64) (*model.Attach, error) {
	log.Printf("🔍 Fetching attach info: %d", attachID)

	var attaches []model.Attach

	data, _, err := c.supabase.From("mirage_attach").
		Select("*", "exact", false).
		Eq("attach_id", fmt.Sprintf("%d", attachID)).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query mirage_attach: %w", err)
	}

	if err := json.Unmarshal(data, &attaches); err != nil {
		return nil, fmt.Errorf("failed to parse attach response: %w", err)
	}

	if len(attaches) == 0 {
		return nil, fmt.Errorf("attach not found: %d", attachID)
	}

	return &attaches[0], nil
}

// FetchMemberBalance - 회원 크레딧 잔액 조회
func (c *Client) FetchMemberBalance(ctx context.Context, memberID string) (*model.Member, error) {
	var members []model.Member

	data, _, err := c.supabase.From("mirage_member").
		Select("*", "exact", false).
		Eq("member_id", memberID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("failed to parse member data: %w", err)
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("member not found: %s", memberID)
	}

	return &members[0], nil
}
