package main

import (
	"encoding/json"
	"log"
	"net/http"

	"mirage-studio-server/modules/batch"
	"mirage-studio-server/modules/common/config"
	"mirage-studio-server/modules/common/database"
	"mirage-studio-server/modules/common/gemini"
	"mirage-studio-server/modules/common/ledger"
	"mirage-studio-server/modules/common/redis"
	"mirage-studio-server/modules/common/replay"
	"mirage-studio-server/modules/common/storage"
	"mirage-studio-server/modules/credits"
	"mirage-studio-server/modules/generate"
	"mirage-studio-server/modules/modify"
	"mirage-studio-server/modules/progress"

	"github.com/gorilla/mux"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "mirage-studio-server",
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// 공용 클라이언트
	rdb := redis.Connect(cfg)
	db := database.NewClient()
	assets := storage.NewClient()
	ledgerClient := ledger.NewClient()
	generator := gemini.NewClient()
	replayCache := replay.NewCache(rdb, cfg.ReplayCacheTTL)

	// 진행 상황 허브 (WebSocket)
	hub := progress.NewHub()

	// 배치 오케스트레이터
	orchestrator := batch.New(batch.Deps{
		Ledger:        ledgerClient,
		Artifacts:     db,
		Balances:      db,
		Assets:        assets,
		Generator:     generator,
		Notifier:      hub,
		Cache:         replayCache,
		TaskTimeout:   cfg.TaskTimeout,
		SignedURLTTL:  cfg.SignedURLTTL,
		MaxVariants:   cfg.MaxVariants,
		ModelResolver: cfg.ModelForQuality,
	})

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ws", hub.HandleWebSocket)

	generate.NewGenerateHandler(generate.NewService(orchestrator, db, assets)).RegisterRoutes(r)
	modify.NewModifyHandler(modify.NewService(orchestrator, db, assets)).RegisterRoutes(r)
	credits.NewCreditsHandler(db).RegisterRoutes(r)

	log.Printf("🚀 Mirage Studio Server starting on port %s", cfg.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)

	// 서버 시작
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
