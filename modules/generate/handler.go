package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"mirage-studio-server/modules/batch"
	"mirage-studio-server/modules/common/config"
	"mirage-studio-server/modules/common/ledger"

	"github.com/gorilla/mux"
)

type GenerateHandler struct {
	service *Service
}

func NewGenerateHandler(service *Service) *GenerateHandler {
	return &GenerateHandler{service: service}
}

// RegisterRoutes - 라우터에 Generate 엔드포인트 등록
func (h *GenerateHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generate", h.Generate).Methods("POST", "OPTIONS")
	log.Println("✅ Generate routes registered: /api/generate")
}

// Generate - 이미지 변형 N개 생성
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// OPTIONS 요청 처리 (CORS preflight)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Invalid request format",
		})
		return
	}

	if req.UserID == "" || req.Prompt == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Missing required fields: userId, prompt",
		})
		return
	}

	cfg := config.GetConfig()
	if req.Quantity < 1 || req.Quantity > cfg.MaxVariants {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": fmt.Sprintf("Quantity must be between 1 and %d", cfg.MaxVariants),
		})
		return
	}

	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}

	log.Printf("🎨 Generate request: User=%s, Quantity=%d, Quality=%s", req.UserID, req.Quantity, req.QualityClass)

	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		WriteBatchError(w, err)
		return
	}

	WriteBatchResult(w, req.Quantity, result)
}

// WriteBatchError - 배치 실행 에러를 HTTP 상태로 변환 (modify 핸들러와 공용)
func WriteBatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrInsufficientCredits) {
		log.Printf("💰 Insufficient credits: %v", err)
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Insufficient credits",
		})
		return
	}

	log.Printf("❌ Batch execution failed: %v", err)
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}

// WriteBatchResult - N=1은 평평한 단건 응답, N>1은 배치 응답 (modify 핸들러와 공용)
func WriteBatchResult(w http.ResponseWriter, quantity int, result *batch.Result) {
	if quantity == 1 {
		if result.TotalSucceeded == 0 {
			// 단건 실패 - 크레딧은 차감되지 않았다
			reason := ""
			if len(result.Results) > 0 {
				reason = string(result.Results[0].FailureReason)
			}
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":            "Generation failed",
				"failureReason":    reason,
				"creditsUsed":      0,
				"creditsRemaining": result.CreditsRemaining,
			})
			return
		}

		single := result.Results[0]
		for _, o := range result.Results {
			if o.Succeeded {
				single = o
				break
			}
		}
		json.NewEncoder(w).Encode(SingleResponse{
			ArtifactID:       single.ArtifactID,
			AssetURL:         single.AssetURL,
			CreditsUsed:      result.CreditsUsed,
			CreditsRemaining: result.CreditsRemaining,
			BatchToken:       result.BatchToken,
			Replayed:         result.Replayed,
		})
		return
	}

	// 부분 실패는 요청 실패가 아니다 - 200으로 내려주고 항목별 결과로 표현
	json.NewEncoder(w).Encode(result)
}
