package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"mirage-studio-server/modules/common/config"
)

// ErrInsufficientCredits - 잔액 부족 (비즈니스 거절, 스토리지 장애 아님)
var ErrInsufficientCredits = errors.New("insufficient credits")

// FailureReasonInsufficient - reserve 거절 사유 코드
const FailureReasonInsufficient = "INSUFFICIENT"

// Result - reserve/compensate 호출 결과
type Result struct {
	Applied       bool   `json:"applied"`
	Duplicate     bool   `json:"duplicate"`
	Remaining     int    `json:"balance_remaining"`
	FailureReason string `json:"error_code"`
}

// Client - 크레딧 원장 클라이언트
// check-and-decrement는 Postgres 함수 한 번의 호출로 처리한다 (애플리케이션 레벨
// read-then-write 금지, 동시 요청 간 잔액 초과 방지).
type Client struct {
	supabase *supabase.Client
}

// NewClient - Ledger 클라이언트 생성
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

// NewToken - 논리적 시도 1건당 새 멱등성 토큰 발급
func NewToken() string {
	return uuid.NewString()
}

// Reserve - 크레딧 차감 예약 (토큰당 최대 1회 적용)
// 같은 토큰 재호출은 최초 결과를 그대로 반환한다 (duplicate=true, 에러 아님).
func (c *Client) Reserve(ctx context.Context, memberID string, amount int, token, reason string, batchToken *string) (*Result, error) {
	if err := validateCall(memberID, amount, token); err != nil {
		return nil, err
	}

	log.Printf("💰 Reserving credits: Member=%s, Amount=%d, Token=%s", memberID, amount, token)

	params := map[string]interface{}{
		"p_member_id":   memberID,
		"p_amount":      amount,
		"p_token":       token,
		"p_description": reason,
		"p_batch_token": batchToken,
	}

	result, err := c.callLedgerRPC("mirage_reserve_credits", params)
	if err != nil {
		return nil, err
	}

	if result.FailureReason == FailureReasonInsufficient {
		log.Printf("⚠️  Reserve rejected: Member=%s needs %d, remaining %d", memberID, amount, result.Remaining)
		return result, fmt.Errorf("%w: required %d, remaining %d", ErrInsufficientCredits, amount, result.Remaining)
	}
	if err := rejectionError(result); err != nil {
		log.Printf("❌ Reserve rejected: Member=%s, Token=%s: %v", memberID, token, err)
		return result, err
	}

	if result.Duplicate {
		log.Printf("🔁 Reserve token replayed: Token=%s, Balance=%d (no-op)", token, result.Remaining)
	} else {
		log.Printf("✅ Credits reserved: -%d, Balance=%d", amount, result.Remaining)
	}

	return result, nil
}

// Compensate - 실패분 환불 (reserve와 같은 멱등성 계약, 항상 새 토큰 사용)
// reserve 토큰을 재사용하면 중복으로 간주돼 환불이 no-op이 되므로 호출자가 새 토큰을 만들어야 한다.
func (c *Client) Compensate(ctx context.Context, memberID string, amount int, token, reason string) (*Result, error) {
	if err := validateCall(memberID, amount, token); err != nil {
		return nil, err
	}

	log.Printf("💸 Compensating credits: Member=%s, Amount=%d, Token=%s, Reason=%s", memberID, amount, token, reason)

	params := map[string]interface{}{
		"p_member_id":   memberID,
		"p_amount":      amount,
		"p_token":       token,
		"p_description": reason,
	}

	result, err := c.callLedgerRPC("mirage_refund_credits", params)
	if err != nil {
		return nil, err
	}

	// 환불 거절(예: MEMBER_NOT_FOUND)을 성공으로 삼키면 보상 실패가 조용히 사라진다
	if err := rejectionError(result); err != nil {
		log.Printf("❌ Refund rejected: Member=%s, Token=%s: %v", memberID, token, err)
		return result, err
	}

	if result.Duplicate {
		log.Printf("🔁 Refund token replayed: Token=%s, Balance=%d (no-op)", token, result.Remaining)
	} else {
		log.Printf("✅ Credits refunded: +%d, Balance=%d", amount, result.Remaining)
	}

	return result, nil
}

// callLedgerRPC - 원장 Postgres 함수 호출 및 응답 파싱
// 빈 응답은 전송/스토리지 장애로 본다. 부분 적용을 가정하면 안 된다.
func (c *Client) callLedgerRPC(name string, params map[string]interface{}) (*Result, error) {
	raw := c.supabase.Rpc(name, "", params)
	if raw == "" {
		return nil, fmt.Errorf("ledger rpc %s failed: empty response", name)
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, fmt.Errorf("ledger rpc %s failed: %w", name, err)
	}
	return result, nil
}

// parseResult - RPC 응답 파싱 (객체 또는 단일 요소 배열 모두 허용)
func parseResult(raw string) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return &result, nil
	}

	var results []Result
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("unexpected response: %s", raw)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("empty result set: %s", raw)
	}
	return &results[0], nil
}

// rejectionError - RPC가 돌려준 비즈니스 거절 코드를 에러로 변환
func rejectionError(result *Result) error {
	if result.FailureReason == "" {
		return nil
	}
	return fmt.Errorf("ledger rejected call: %s", result.FailureReason)
}

// validateCall - 호출 전 입력 검증 (라운드트립 전에 거른다)
func validateCall(memberID string, amount int, token string) error {
	if memberID == "" {
		return fmt.Errorf("member id is required")
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %d", amount)
	}
	if token == "" {
		return fmt.Errorf("idempotency token is required")
	}
	return nil
}
