package modify

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"mirage-studio-server/modules/common/config"
	"mirage-studio-server/modules/generate"

	"github.com/gorilla/mux"
)

type ModifyHandler struct {
	service *Service
}

func NewModifyHandler(service *Service) *ModifyHandler {
	return &ModifyHandler{service: service}
}

// RegisterRoutes - 라우터에 Modify 엔드포인트 등록
func (h *ModifyHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/modify", h.Modify).Methods("POST", "OPTIONS")
	log.Println("✅ Modify routes registered: /api/modify")
}

// Modify - 기존 아티팩트 마스크 영역 재생성
func (h *ModifyHandler) Modify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// OPTIONS 요청 처리 (CORS preflight)
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req ModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to parse request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Invalid request format",
		})
		return
	}

	if req.UserID == "" || req.AttachID == 0 || req.MaskDataURL == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Missing required fields: userId, attachId, maskDataUrl",
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

	log.Printf("🎨 Modify request: User=%s, Attach=%d, Quantity=%d", req.UserID, req.AttachID, req.Quantity)

	result, err := h.service.Modify(r.Context(), req)
	if err != nil {
		generate.WriteBatchError(w, err)
		return
	}

	generate.WriteBatchResult(w, req.Quantity, result)
}
