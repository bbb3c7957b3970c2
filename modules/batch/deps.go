package batch

import (
	"context"
	"log"
	"time"

	"mirage-studio-server/modules/common/database"
	"mirage-studio-server/modules/common/gemini"
	"mirage-studio-server/modules/common/ledger"
	"mirage-studio-server/modules/common/model"
	"mirage-studio-server/modules/common/render"
	"mirage-studio-server/modules/common/storage"
)

// CreditLedger - 크레딧 원장 (atomic reserve/compensate)
type CreditLedger interface {
	Reserve(ctx context.Context, memberID string, amount int, token, reason string, batchToken *string) (*ledger.Result, error)
	Compensate(ctx context.Context, memberID string, amount int, token, reason string) (*ledger.Result, error)
}

// ArtifactStore - 출력 레코드 라이프사이클
type ArtifactStore interface {
	CreatePlaceholders(ctx context.Context, memberID string, n int, shared database.PlaceholderFields) ([]int64, error)
	FinalizeAttach(ctx context.Context, attachID int64, assetPath string, fileSize int64, renditions *database.Renditions) error
	RemoveAttaches(ctx context.Context, attachIDs []int64) error
	FetchAttachesByBatchToken(ctx context.Context, batchToken string) ([]model.Attach, error)
}

// BalanceReader - 잔액 조회 (보고용 읽기, 원장 경로와 별개)
type BalanceReader interface {
	FetchMemberBalance(ctx context.Context, memberID string) (*model.Member, error)
}

// AssetStore - 영속 에셋 저장소
type AssetStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// Generator - 생성 백엔드 (블랙박스)
type Generator interface {
	Generate(ctx context.Context, input gemini.GenerateInput) (*gemini.GeneratedImage, error)
}

// RenditionBuilder - 2차 렌디션 파생 (best-effort)
type RenditionBuilder interface {
	Derive(ctx context.Context, memberID string, data []byte) (*database.Renditions, error)
}

// Notifier - 진행 상황 브로드캐스트 (out-of-band, 결과에 영향 없음)
type Notifier interface {
	TaskSettled(batchToken string, outcome Outcome)
	BatchCompleted(batchToken string, result *Result)
}

// ReplayCache - 토큰별 최종 응답 캐시
type ReplayCache interface {
	Store(ctx context.Context, token string, response interface{})
	Load(ctx context.Context, token string, out interface{}) bool
}

// NopNotifier - 알림 비활성화용
type NopNotifier struct{}

func (NopNotifier) TaskSettled(string, Outcome)    {}
func (NopNotifier) BatchCompleted(string, *Result) {}

// renditionBuilder - WebP 프리뷰 + 썸네일 생성 후 스토리지 업로드
type renditionBuilder struct {
	assets AssetStore
}

// NewRenditionBuilder - 기본 RenditionBuilder 생성
func NewRenditionBuilder(assets AssetStore) RenditionBuilder {
	return &renditionBuilder{assets: assets}
}

// Derive - 프리뷰/썸네일 파생. 실패해도 아티팩트 전체를 실패시키지 않는다.
func (b *renditionBuilder) Derive(ctx context.Context, memberID string, data []byte) (*database.Renditions, error) {
	renditions := &database.Renditions{}

	webpData, err := render.ConvertPNGToWebP(data, 90.0)
	if err != nil {
		return nil, err
	}

	previewPath := storage.GeneratedPath(memberID, "webp")
	if err := b.assets.Upload(ctx, previewPath, webpData, "image/webp"); err != nil {
		return nil, err
	}
	renditions.PreviewPath = previewPath

	// 썸네일은 프리뷰보다도 더 선택적
	if thumbData, err := render.Thumbnail(data, 256); err == nil {
		thumbPath := storage.GeneratedPath(memberID, "png")
		if err := b.assets.Upload(ctx, thumbPath, thumbData, "image/png"); err == nil {
			renditions.ThumbPath = thumbPath
		} else {
			log.Printf("⚠️  Thumbnail upload failed (non-fatal): %v", err)
		}
	} else {
		log.Printf("⚠️  Thumbnail generation failed (non-fatal): %v", err)
	}

	return renditions, nil
}
