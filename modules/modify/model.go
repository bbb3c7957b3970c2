package modify

// ModifyRequest - POST /api/modify 요청 바디
// 기존 아티팩트를 원본으로 마스크 영역을 재생성한다.
type ModifyRequest struct {
	UserID             string  `json:"userId"`
	AttachID           int64   `json:"attachId"`    // 수정할 원본 아티팩트
	MaskDataURL        string  `json:"maskDataUrl"` // data URL 형식 inpaint 마스크
	Prompt             string  `json:"prompt"`
	Quantity           int     `json:"quantity"`
	QualityClass       string  `json:"qualityClass,omitempty"`
	AspectRatio        string  `json:"aspectRatio,omitempty"`
	ReferenceAttachIDs []int64 `json:"referenceAttachIds,omitempty"`

	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
