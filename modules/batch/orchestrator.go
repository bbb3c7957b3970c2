package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mirage-studio-server/modules/common/database"
	"mirage-studio-server/modules/common/ledger"
	"mirage-studio-server/modules/common/model"
)

// Orchestrator - 배치 1건의 전체 흐름 조정
// 예약 타이밍 정책, fan-out/fan-in, 실패분 환불, 응답 조립을 담당한다.
type Orchestrator struct {
	ledger     CreditLedger
	artifacts  ArtifactStore
	balances   BalanceReader
	assets     AssetStore
	generator  Generator
	renditions RenditionBuilder
	notifier   Notifier
	cache      ReplayCache

	taskTimeout   time.Duration
	signedURLTTL  time.Duration
	maxVariants   int
	modelResolver func(qualityClass string) string
}

// Deps - Orchestrator 의존성 (테스트에서는 fake 주입)
type Deps struct {
	Ledger     CreditLedger
	Artifacts  ArtifactStore
	Balances   BalanceReader
	Assets     AssetStore
	Generator  Generator
	Renditions RenditionBuilder // nil이면 기본 빌더 (WebP + 썸네일)
	Notifier   Notifier         // nil이면 no-op
	Cache      ReplayCache      // nil이면 캐시 없이 동작

	TaskTimeout   time.Duration
	SignedURLTTL  time.Duration
	MaxVariants   int
	ModelResolver func(qualityClass string) string
}

// New - Orchestrator 생성
func New(deps Deps) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Renditions == nil {
		deps.Renditions = NewRenditionBuilder(deps.Assets)
	}
	if deps.TaskTimeout <= 0 {
		deps.TaskTimeout = 120 * time.Second
	}
	if deps.SignedURLTTL <= 0 {
		deps.SignedURLTTL = time.Hour
	}
	if deps.MaxVariants <= 0 {
		deps.MaxVariants = 4
	}
	if deps.ModelResolver == nil {
		deps.ModelResolver = func(string) string { return "" }
	}

	return &Orchestrator{
		ledger:        deps.Ledger,
		artifacts:     deps.Artifacts,
		balances:      deps.Balances,
		assets:        deps.Assets,
		generator:     deps.Generator,
		renditions:    deps.Renditions,
		notifier:      deps.Notifier,
		cache:         deps.Cache,
		taskTimeout:   deps.TaskTimeout,
		signedURLTTL:  deps.SignedURLTTL,
		maxVariants:   deps.MaxVariants,
		modelResolver: deps.ModelResolver,
	}
}

// Run - 배치 실행
// N=1은 성공 후 과금, N>1은 선결제 후 실패분 환불 (PrepaidPolicy 참고).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	// 멱등성 토큰: 호출자가 주면 재시도 간 안정, 없으면 새로 발급
	callerToken := req.IdempotencyToken
	token := callerToken
	if token == "" {
		token = ledger.NewToken()
	}

	n := req.Count
	totalCost := req.UnitCost * n
	prepaid := PrepaidPolicy(n)

	log.Printf("🎯 Batch %s: Member=%s, N=%d, UnitCost=%d, Total=%d, Prepaid=%v",
		token, req.MemberID, n, req.UnitCost, totalCost, prepaid)

	// 호출자 토큰이 있으면 재시도일 수 있다 - 캐시/기존 아티팩트 먼저 확인
	if callerToken != "" {
		if cached := o.loadReplay(ctx, callerToken); cached != nil {
			return cached, nil
		}
		if replayed, err := o.replayFromArtifacts(ctx, req, token, -1); err == nil && replayed != nil {
			return replayed, nil
		}
	}

	// N>1: 생성 전 전액 선결제
	var reserveRemaining int
	if prepaid {
		res, err := o.ledger.Reserve(ctx, req.MemberID, totalCost, token,
			fmt.Sprintf("%s batch x%d (%s)", req.Kind, n, req.QualityClass), &token)
		if err != nil {
			// INSUFFICIENT 포함 - 아티팩트 생성 전에 중단
			return nil, err
		}
		reserveRemaining = res.Remaining

		if res.Duplicate {
			// 같은 외부 요청의 재시도 - 재생성하지 않고 기존 아티팩트 상태를 반환
			replayed, rerr := o.replayFromArtifacts(ctx, req, token, res.Remaining)
			if rerr != nil {
				return nil, rerr
			}
			if replayed != nil {
				return replayed, nil
			}
			// 예약만 되고 아티팩트가 없던 시도 - 이번 실행이 이어받는다
			log.Printf("⚠️  Batch %s: duplicate reserve but no artifacts, resuming generation", token)
		}
	}

	// placeholder N개 생성 (정확히 N개 아니면 전체 중단)
	attachIDs, err := o.artifacts.CreatePlaceholders(ctx, req.MemberID, n, database.PlaceholderFields{
		BatchToken:   token,
		QualityClass: req.QualityClass,
		Prompt:       req.Prompt,
	})
	if err != nil {
		if prepaid {
			o.rollbackReservation(ctx, req, totalCost, token)
		}
		return nil, fmt.Errorf("failed to create placeholders: %w", err)
	}

	// fan-out: N개 태스크 동시 실행. 태스크끼리는 통신하지 않는다.
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup

	for i, attachID := range attachIDs {
		wg.Add(1)
		go func(idx int, id int64) {
			defer wg.Done()
			outcomes[idx] = o.runTask(ctx, req, id)
			o.notifier.TaskSettled(token, outcomes[idx])
		}(i, attachID)
	}

	// fan-in: 전부 settle할 때까지 대기 (환불액이 전체 실패 수에 달려 있어 early-exit 금지)
	log.Printf("⏳ Batch %s: waiting for all %d tasks to settle...", token, n)
	wg.Wait()

	succeeded, failed := Partition(outcomes)
	log.Printf("🏁 Batch %s: %d succeeded, %d failed", token, len(succeeded), len(failed))

	// 실패한 태스크의 아티팩트는 응답 전에 제거
	if len(failed) > 0 {
		failedIDs := make([]int64, 0, len(failed))
		for _, f := range failed {
			failedIDs = append(failedIDs, f.ArtifactID)
		}
		if err := o.artifacts.RemoveAttaches(ctx, failedIDs); err != nil {
			log.Printf("⚠️  Batch %s: failed to remove failed artifacts %v: %v", token, failedIDs, err)
		}
	}

	result := &Result{
		Results:        outcomes,
		TotalRequested: n,
		TotalSucceeded: len(succeeded),
		TotalFailed:    len(failed),
		BatchToken:     token,
	}

	if prepaid {
		o.settlePrepaid(ctx, req, result, token, reserveRemaining, len(succeeded), len(failed))
	} else {
		o.settleSingle(ctx, req, result, token, totalCost)
	}

	o.notifier.BatchCompleted(token, result)
	if o.cache != nil && callerToken != "" {
		o.cache.Store(ctx, callerToken, result)
	}

	return result, nil
}

// settlePrepaid - N>1 정산: 실패분만큼 한 번에 환불
func (o *Orchestrator) settlePrepaid(ctx context.Context, req Request, result *Result, token string, reserveRemaining, succeededCount, failedCount int) {
	result.CreditsUsed = req.UnitCost * succeededCount
	result.CreditsRemaining = reserveRemaining

	if failedCount == 0 {
		return
	}

	refundAmount := req.UnitCost * failedCount
	// 환불은 반드시 새 토큰 (예약 토큰 재사용 시 중복 no-op이 돼버림)
	refundToken := ledger.NewToken()

	res, err := o.ledger.Compensate(ctx, req.MemberID, refundAmount, refundToken,
		fmt.Sprintf("refund for %d failed %s tasks", failedCount, req.Kind))
	if err != nil {
		// 환불 실패는 절대 조용히 삼키지 않는다 - 응답에 경고를 싣고 수동 대사용 로그를 남긴다
		log.Printf("🚨 Batch %s: REFUND FAILED - member %s owed %d credits: %v", token, req.MemberID, refundAmount, err)
		result.RefundFailureWarning = &RefundWarning{
			Amount:    refundAmount,
			Reason:    err.Error(),
			RequestID: token,
		}
		return
	}

	result.CreditsRemaining = res.Remaining
}

// settleSingle - N=1 정산: 성공했을 때만 사후 과금
func (o *Orchestrator) settleSingle(ctx context.Context, req Request, result *Result, token string, cost int) {
	if result.TotalSucceeded == 0 {
		// 단건 실패는 원장을 전혀 건드리지 않는다
		result.CreditsUsed = 0
		result.CreditsRemaining = o.readBalance(ctx, req.MemberID)
		return
	}

	res, err := o.ledger.Reserve(ctx, req.MemberID, cost, token,
		fmt.Sprintf("%s single (%s)", req.Kind, req.QualityClass), &token)
	if err != nil {
		// 생성은 됐지만 과금이 안 되면 결과를 내줄 수 없다 - 아티팩트 삭제 후 실패 보고
		reason := ReasonDatabase
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			reason = ReasonInsufficient
		}
		log.Printf("⚠️  Batch %s: post-hoc charge failed (%s), discarding generated artifact", token, reason)

		artifactID := result.Results[0].ArtifactID
		if removeErr := o.artifacts.RemoveAttaches(ctx, []int64{artifactID}); removeErr != nil {
			log.Printf("⚠️  Batch %s: failed to remove artifact %d: %v", token, artifactID, removeErr)
		}

		result.Results[0] = Outcome{ArtifactID: artifactID, FailureReason: reason}
		result.TotalSucceeded = 0
		result.TotalFailed = 1
		result.CreditsUsed = 0
		if res != nil {
			result.CreditsRemaining = res.Remaining
		} else {
			result.CreditsRemaining = o.readBalance(ctx, req.MemberID)
		}
		return
	}

	result.CreditsUsed = cost
	result.CreditsRemaining = res.Remaining
}

// rollbackReservation - 생성 시작 전 중단 시 선결제 전액 환불
func (o *Orchestrator) rollbackReservation(ctx context.Context, req Request, amount int, token string) {
	refundToken := ledger.NewToken()
	if _, err := o.ledger.Compensate(ctx, req.MemberID, amount, refundToken,
		"rollback: batch aborted before generation"); err != nil {
		log.Printf("🚨 Batch %s: rollback refund of %d credits FAILED for member %s: %v", token, amount, req.MemberID, err)
	}
}

// loadReplay - 캐시된 최초 응답 조회
func (o *Orchestrator) loadReplay(ctx context.Context, token string) *Result {
	if o.cache == nil {
		return nil
	}
	var cached Result
	if !o.cache.Load(ctx, token, &cached) {
		return nil
	}
	cached.Replayed = true
	return &cached
}

// replayFromArtifacts - 기존 아티팩트에서 응답 복원 (중복 요청 처리)
// 실패 사유는 영속되지 않으므로 복원 응답은 성공 아티팩트와 개수만 보고한다.
// remaining < 0이면 잔액을 새로 읽는다. 아티팩트가 없으면 (nil, nil).
func (o *Orchestrator) replayFromArtifacts(ctx context.Context, req Request, token string, remaining int) (*Result, error) {
	attaches, err := o.artifacts.FetchAttachesByBatchToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up artifacts for duplicate request: %w", err)
	}
	if len(attaches) == 0 {
		return nil, nil
	}

	log.Printf("🔁 Batch %s: duplicate request, returning state of %d existing artifacts", token, len(attaches))

	outcomes := make([]Outcome, 0, len(attaches))
	succeededCount := 0
	for _, a := range attaches {
		if a.AttachStatus != model.AttachStatusFinalized || a.AttachFilePath == nil {
			continue
		}
		assetURL, urlErr := o.assets.SignedURL(ctx, *a.AttachFilePath, o.signedURLTTL)
		if urlErr != nil {
			log.Printf("⚠️  Batch %s: signed url failed for attach %d (non-fatal): %v", token, a.AttachID, urlErr)
		}
		outcomes = append(outcomes, Outcome{
			Succeeded:  true,
			ArtifactID: a.AttachID,
			AssetPath:  *a.AttachFilePath,
			AssetURL:   assetURL,
		})
		succeededCount++
	}

	if remaining < 0 {
		remaining = o.readBalance(ctx, req.MemberID)
	}

	return &Result{
		Results:          outcomes,
		CreditsUsed:      req.UnitCost * succeededCount,
		CreditsRemaining: remaining,
		TotalRequested:   req.Count,
		TotalSucceeded:   succeededCount,
		TotalFailed:      req.Count - succeededCount,
		BatchToken:       token,
		Replayed:         true,
	}, nil
}

// readBalance - 보고용 잔액 읽기 (원장 경로와 별개, 실패 시 0)
func (o *Orchestrator) readBalance(ctx context.Context, memberID string) int {
	member, err := o.balances.FetchMemberBalance(ctx, memberID)
	if err != nil {
		log.Printf("⚠️  Failed to read balance for %s: %v", memberID, err)
		return 0
	}
	return member.MemberCredit
}

// validate - 요청 검증 (예약 전에 거른다)
func (o *Orchestrator) validate(req Request) error {
	if req.MemberID == "" {
		return fmt.Errorf("member id is required")
	}
	if req.Count < 1 || req.Count > o.maxVariants {
		return fmt.Errorf("count must be between 1 and %d, got %d", o.maxVariants, req.Count)
	}
	if !model.ValidQuality(req.QualityClass) {
		return fmt.Errorf("unknown quality class: %s", req.QualityClass)
	}
	if req.UnitCost <= 0 {
		return fmt.Errorf("unit cost must be positive, got %d", req.UnitCost)
	}
	return nil
}
