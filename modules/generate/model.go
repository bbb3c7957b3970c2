package generate

// GenerateRequest - POST /api/generate 요청 바디
type GenerateRequest struct {
	UserID             string  `json:"userId"`
	Prompt             string  `json:"prompt"`
	Quantity           int     `json:"quantity"`
	QualityClass       string  `json:"qualityClass,omitempty"` // standard(기본) | premium
	AspectRatio        string  `json:"aspectRatio,omitempty"`
	ReferenceAttachIDs []int64 `json:"referenceAttachIds,omitempty"`

	// 재시도 시 같은 키를 보내면 중복 생성/중복 차감이 일어나지 않는다
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// SingleResponse - N=1 응답 (배치 래핑 없이 평평하게)
type SingleResponse struct {
	ArtifactID       int64  `json:"artifactId"`
	AssetURL         string `json:"assetUrl"`
	CreditsUsed      int    `json:"creditsUsed"`
	CreditsRemaining int    `json:"creditsRemaining"`
	BatchToken       string `json:"batchToken"`
	Replayed         bool   `json:"replayed,omitempty"`
}
