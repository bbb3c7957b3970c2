package model

import "time"

// Member - mirage_member 테이블 구조
type Member struct {
	MemberID          string    `json:"member_id"`
	MemberCreditTotal int       `json:"member_credit_total"`
	MemberCredit      int       `json:"member_credit"` // 잔여 크레딧
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreditEntry - mirage_credits 원장 테이블 구조 (append-only)
type CreditEntry struct {
	EntryID      int64     `json:"entry_id"`
	EntryToken   string    `json:"entry_token"` // 멱등성 토큰 (unique)
	MemberID     string    `json:"member_id"`
	EntryType    string    `json:"entry_type"` // "reserve" | "refund"
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	Description  string    `json:"description"`
	BatchToken   *string   `json:"batch_token"`
	AttachIdx    *int64    `json:"attach_idx"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attach - mirage_attach 테이블 구조 (생성 결과물 1건당 1행)
type Attach struct {
	AttachID       int64      `json:"attach_id"`
	CreatedAt      time.Time  `json:"created_at"`
	MemberID       string     `json:"member_id"`
	BatchToken     string     `json:"batch_token"` // 같은 요청의 행들을 묶는 토큰
	AttachStatus   string     `json:"attach_status"`
	AttachFilePath *string    `json:"attach_file_path"`
	AttachFileSize *int64     `json:"attach_file_size"`
	AttachFileType *string    `json:"attach_file_type"`
	PreviewPath    *string    `json:"preview_path"` // WebP 프리뷰 (best-effort)
	ThumbPath      *string    `json:"thumb_path"`   // 썸네일 (best-effort)
	QualityClass   string     `json:"quality_class"`
	Prompt         *string    `json:"prompt"`
	FinalizedAt    *time.Time `json:"finalized_at"`
}

// Attach 상태 상수
const (
	AttachStatusPlaceholder = "placeholder"
	AttachStatusFinalized   = "finalized"
)

// CreditEntry 타입 상수
const (
	EntryTypeReserve = "reserve"
	EntryTypeRefund  = "refund"
)

// 품질 등급 상수
const (
	QualityStandard = "standard"
	QualityPremium  = "premium"
)

// ValidQuality - 지원하는 품질 등급인지 확인
func ValidQuality(qualityClass string) bool {
	return qualityClass == QualityStandard || qualityClass == QualityPremium
}
