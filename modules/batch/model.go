package batch

// FailureReason - 태스크/예약 실패 사유 코드
type FailureReason string

const (
	ReasonInsufficient FailureReason = "INSUFFICIENT"       // 잔액 부족 (비즈니스 거절)
	ReasonTimeout      FailureReason = "TIMEOUT"            // 생성 백엔드 데드라인 초과
	ReasonGeneration   FailureReason = "GENERATION_ERROR"   // 생성 백엔드 실패
	ReasonStorage      FailureReason = "STORAGE_ERROR"      // 에셋 저장 실패
	ReasonDatabase     FailureReason = "DATABASE_ERROR"     // 원장/아티팩트 저장소 장애
)

// 태스크 상태 (로깅용 상태 머신: pending → generating → uploading → finalizing → done|failed)
const (
	TaskStatePending    = "pending"
	TaskStateGenerating = "generating"
	TaskStateUploading  = "uploading"
	TaskStateFinalizing = "finalizing"
	TaskStateDone       = "done"
	TaskStateFailed     = "failed"
)

// Request - 배치 1건의 요청 (generate/modify 공용)
type Request struct {
	MemberID     string
	Count        int    // 요청 출력 개수 N (1..MaxVariants)
	Prompt       string
	QualityClass string
	AspectRatio  string
	UnitCost     int // 품질 등급의 이미지당 크레딧

	ReferenceImages [][]byte // 공유 참조 이미지 (PNG)
	MaskImage       []byte   // modify 전용 inpaint 마스크

	// 호출자가 준 멱등성 토큰. 비어 있으면 오케스트레이터가 새로 발급한다.
	// 같은 논리적 요청의 재시도는 같은 토큰을 보내야 at-most-once가 보장된다.
	IdempotencyToken string

	Kind string // "generate" | "modify" (원장 description용)
}

// Outcome - 출력 1건의 결과
// FailureReason이 비어 있으면 성공이다. fan-in 분배는 Partition을 쓴다.
type Outcome struct {
	Succeeded     bool          `json:"succeeded"`
	ArtifactID    int64         `json:"artifactId"`
	AssetPath     string        `json:"-"`
	AssetURL      string        `json:"assetUrl,omitempty"`
	FailureReason FailureReason `json:"failureReason,omitempty"`
}

// RefundWarning - 환불 실패 경고 (절대 조용히 사라지면 안 됨)
type RefundWarning struct {
	Amount    int    `json:"amount"`
	Reason    string `json:"reason"`
	RequestID string `json:"requestId"`
}

// Result - 배치 전체 결과
type Result struct {
	Results          []Outcome      `json:"results"`
	CreditsUsed      int            `json:"creditsUsed"`
	CreditsRemaining int            `json:"creditsRemaining"`
	TotalRequested   int            `json:"totalRequested"`
	TotalSucceeded   int            `json:"totalSucceeded"`
	TotalFailed      int            `json:"totalFailed"`

	RefundFailureWarning *RefundWarning `json:"refundFailureWarning,omitempty"`

	BatchToken string `json:"batchToken"`
	Replayed   bool   `json:"replayed,omitempty"` // 중복 요청 재생 여부
}

// Partition - 결과를 성공/실패로 나눈다 (fan-in 이후, 전체 settle 전에는 호출 금지)
func Partition(outcomes []Outcome) (succeeded, failed []Outcome) {
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded = append(succeeded, o)
		} else {
			failed = append(failed, o)
		}
	}
	return succeeded, failed
}

// PrepaidPolicy - 예약 시점 정책
// N=1이면 생성 성공 후 과금 (단건 실패가 원장을 건드리지 않게),
// N>1이면 생성 전 전액 선결제 후 실패분 환불 (원장 호출을 배치당 2회로 고정).
// 두 분기는 의도된 설계라 하나로 합치면 안 된다.
func PrepaidPolicy(n int) bool {
	return n > 1
}
