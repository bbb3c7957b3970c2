package modify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

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

// Modify - 원본 + 마스크 + 참조를 모아 배치로 실행
func (s *Service) Modify(ctx context.Context, req ModifyRequest) (*batch.Result, error) {
	cfg := config.GetConfig()

	quality := fallback.SafeString(req.QualityClass, model.QualityStandard)

	// 원본 아티팩트가 첫 번째 참조 이미지
	original, err := s.loadAttachBytes(ctx, req.AttachID)
	if err != nil {
		return nil, fmt.Errorf("original attach %d: %w", req.AttachID, err)
	}
	refs := [][]byte{original}

	for _, id := range req.ReferenceAttachIDs {
		data, err := s.loadAttachBytes(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reference attach %d: %w", id, err)
		}
		refs = append(refs, data)
	}

	mask, err := decodeDataURL(req.MaskDataURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mask data url: %w", err)
	}

	log.Printf("🖌️  Modify: original attach %d, %d extra refs, mask %d bytes", req.AttachID, len(refs)-1, len(mask))

	return s.orchestrator.Run(ctx, batch.Request{
		MemberID:         req.UserID,
		Count:            req.Quantity,
		Prompt:           req.Prompt,
		QualityClass:     quality,
		AspectRatio:      req.AspectRatio,
		UnitCost:         cfg.UnitCost(quality),
		ReferenceImages:  refs,
		MaskImage:        mask,
		IdempotencyToken: req.IdempotencyKey,
		Kind:             "modify",
	})
}

func (s *Service) loadAttachBytes(ctx context.Context, attachID int64) ([]byte, error) {
	attach, err := s.db.FetchAttachInfo(ctx, attachID)
	if err != nil {
		return nil, err
	}
	if attach.AttachFilePath == nil {
		return nil, fmt.Errorf("attach has no stored file")
	}
	return s.assets.Download(ctx, *attach.AttachFilePath)
}

// decodeDataURL - "data:image/png;base64,..." 형식에서 바이트 추출
func decodeDataURL(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("not a base64 data url")
	}
	return base64.StdEncoding.DecodeString(dataURL[idx+len("base64,"):])
}
