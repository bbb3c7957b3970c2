package credits

import (
	"encoding/json"
	"log"
	"net/http"

	"mirage-studio-server/modules/common/database"

	"github.com/gorilla/mux"
)

type CreditsHandler struct {
	db *database.Client
}

func NewCreditsHandler(db *database.Client) *CreditsHandler {
	return &CreditsHandler{db: db}
}

// RegisterRoutes - 라우터에 Credits 엔드포인트 등록
func (h *CreditsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/credits/{userId}", h.GetBalance).Methods("GET", "OPTIONS")
	log.Println("✅ Credits routes registered: /api/credits/{userId}")
}

// GetBalance - 잔액 조회 (보고용 읽기, 원장 변경 없음)
func (h *CreditsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Missing userId",
		})
		return
	}

	member, err := h.db.FetchMemberBalance(r.Context(), userID)
	if err != nil {
		log.Printf("❌ Failed to fetch balance for %s: %v", userID, err)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Member not found",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"userId":           member.MemberID,
		"creditsTotal":     member.MemberCreditTotal,
		"creditsRemaining": member.MemberCredit,
	})
}
