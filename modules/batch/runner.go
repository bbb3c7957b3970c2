package batch

import (
	"context"
	"errors"
	"log"

	"mirage-studio-server/modules/common/gemini"
	"mirage-studio-server/modules/common/storage"
)

// runTask - 태스크 1건 실행: pending → generating → uploading → finalizing → done|failed
// 실패는 구조화된 Outcome으로만 보고한다. 다른 태스크를 막거나 취소시키지 않는다.
func (o *Orchestrator) runTask(ctx context.Context, req Request, attachID int64) Outcome {
	log.Printf("🚀 Task %d: %s", attachID, TaskStatePending)

	// Phase 1: generating - 생성 백엔드 호출 (태스크별 데드라인)
	log.Printf("🎨 Task %d: %s", attachID, TaskStateGenerating)

	genCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	img, err := o.generator.Generate(genCtx, gemini.GenerateInput{
		Model:           o.modelResolver(req.QualityClass),
		Prompt:          req.Prompt,
		AspectRatio:     req.AspectRatio,
		ReferenceImages: req.ReferenceImages,
		MaskImage:       req.MaskImage,
	})
	if err != nil {
		reason := ReasonGeneration
		if errors.Is(err, context.DeadlineExceeded) || genCtx.Err() == context.DeadlineExceeded {
			reason = ReasonTimeout
		}
		log.Printf("❌ Task %d: %s (reason: %s): %v", attachID, TaskStateFailed, reason, err)
		return Outcome{ArtifactID: attachID, FailureReason: reason}
	}

	// Phase 2: uploading - 에셋 영속화
	log.Printf("📤 Task %d: %s", attachID, TaskStateUploading)

	assetPath := storage.GeneratedPath(req.MemberID, "png")
	if err := o.assets.Upload(ctx, assetPath, img.Data, img.MIMEType); err != nil {
		log.Printf("❌ Task %d: %s (reason: %s): %v", attachID, TaskStateFailed, ReasonStorage, err)
		return Outcome{ArtifactID: attachID, FailureReason: ReasonStorage}
	}

	// Phase 3: finalizing - 렌디션 파생(best-effort) 후 레코드 확정
	log.Printf("📝 Task %d: %s", attachID, TaskStateFinalizing)

	renditions, rendErr := o.renditions.Derive(ctx, req.MemberID, img.Data)
	if rendErr != nil {
		// 렌디션 실패는 아티팩트를 실패시키지 않는다
		log.Printf("⚠️  Task %d: rendition derivation failed (non-fatal): %v", attachID, rendErr)
		renditions = nil
	}

	if err := o.artifacts.FinalizeAttach(ctx, attachID, assetPath, int64(len(img.Data)), renditions); err != nil {
		// 선택 필드 문제일 수 있으니 최소 필드로 즉시 1회 재시도
		log.Printf("⚠️  Task %d: finalize failed, retrying with minimal fields: %v", attachID, err)
		if err := o.artifacts.FinalizeAttach(ctx, attachID, assetPath, int64(len(img.Data)), nil); err != nil {
			log.Printf("❌ Task %d: %s (reason: %s): %v", attachID, TaskStateFailed, ReasonDatabase, err)
			return Outcome{ArtifactID: attachID, FailureReason: ReasonDatabase}
		}
	}

	// 서명 URL은 응답 편의용 (실패해도 성공 결과 유지)
	assetURL, err := o.assets.SignedURL(ctx, assetPath, o.signedURLTTL)
	if err != nil {
		log.Printf("⚠️  Task %d: signed url failed (non-fatal): %v", attachID, err)
	}

	log.Printf("✅ Task %d: %s (%s)", attachID, TaskStateDone, assetPath)
	return Outcome{
		Succeeded:  true,
		ArtifactID: attachID,
		AssetPath:  assetPath,
		AssetURL:   assetURL,
	}
}
