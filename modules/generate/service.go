package generate

import (
	"context"
	"fmt"
	"log"

	"mirage-studio-server/modules/batch"
	"mirage-studio-server/modules/common/config"
	"mirage-studio-server/modules/common/database"
	"mirage-studio-server/modules/common/fallback"
	"mirage-studio-server/modules/common/model"
	"mirage-studio-server/modules/common/storage"
)

type Service struct {
	orchestrator *batch.Orchestrator
	db           *database.Client
	assets       *storage.Client
}

func NewService(orchestrator *batch.Orchestrator, db *database.Client, assets *storage.Client) *Service {
	return &Service{
		orchestrator: orchestrator,
		db:           db,
		assets:       assets,
	}
}

// Generate - 요청을 배치로 변환해 실행
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*batch.Result, error) {
	cfg := config.GetConfig()

	quality := fallback.SafeString(req.QualityClass, model.QualityStandard)

	refs, err := s.loadReferenceImages(ctx, req.ReferenceAttachIDs)
	if err != nil {
		return nil, err
	}

	return s.orchestrator.Run(ctx, batch.Request{
		MemberID:         req.UserID,
		Count:            req.Quantity,
		Prompt:           req.Prompt,
		QualityClass:     quality,
		AspectRatio:      req.AspectRatio,
		UnitCost:         cfg.UnitCost(quality),
		ReferenceImages:  refs,
		IdempotencyToken: req.IdempotencyKey,
		Kind:             "generate",
	})
}

// loadReferenceImages - 참조 아티팩트의 원본 바이트 로드 (생성 전 전부 준비)
func (s *Service) loadReferenceImages(ctx context.Context, attachIDs []int64) ([][]byte, error) {
	if len(attachIDs) == 0 {
		return nil, nil
	}

	refs := make([][]byte, 0, len(attachIDs))
	for _, id := range attachIDs {
		attach, err := s.db.FetchAttachInfo(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reference attach %d not found: %w", id, err)
		}
		if attach.AttachFilePath == nil {
			return nil, fmt.Errorf("reference attach %d has no stored file", id)
		}

		data, err := s.assets.Download(ctx, *attach.AttachFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to download reference attach %d: %w", id, err)
		}
		refs = append(refs, data)
	}

	log.Printf("📥 Loaded %d reference images", len(refs))
	return refs, nil
}
