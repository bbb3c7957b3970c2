package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"mirage-studio-server/modules/batch"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		return true
	},
}

// Message - 진행 상황 브로드캐스트 메시지
type Message struct {
	Type       string `json:"type"` // task_settled | batch_completed
	BatchToken string `json:"batchToken"`

	// task_settled
	ArtifactID    int64  `json:"artifactId,omitempty"`
	Succeeded     bool   `json:"succeeded,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`

	// batch_completed
	TotalSucceeded   int  `json:"totalSucceeded,omitempty"`
	TotalFailed      int  `json:"totalFailed,omitempty"`
	CreditsUsed      int  `json:"creditsUsed,omitempty"`
	CreditsRemaining int  `json:"creditsRemaining,omitempty"`
	RefundWarning    bool `json:"refundWarning,omitempty"`
}

// 연결된 클라이언트 정보
type client struct {
	conn       *websocket.Conn
	batchToken string
	memberID   string
	send       chan []byte
}

// channel - 배치 토큰 하나를 구독하는 클라이언트 묶음
type channel struct {
	token        string
	clients      map[*client]struct{}
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// Hub - 배치 토큰별 진행 상황 채널 관리
// batch.Notifier 구현체. 구독자가 없는 토큰으로의 브로드캐스트는 no-op.
type Hub struct {
	channels map[string]*channel
	mutex    sync.RWMutex
}

func NewHub() *Hub {
	h := &Hub{channels: make(map[string]*channel)}
	h.startCleanupRoutine()
	return h
}

// TaskSettled - 태스크 1건 settle 브로드캐스트
func (h *Hub) TaskSettled(batchToken string, outcome batch.Outcome) {
	h.broadcast(batchToken, Message{
		Type:          "task_settled",
		BatchToken:    batchToken,
		ArtifactID:    outcome.ArtifactID,
		Succeeded:     outcome.Succeeded,
		FailureReason: string(outcome.FailureReason),
	})
}

// BatchCompleted - 배치 완료 브로드캐스트
func (h *Hub) BatchCompleted(batchToken string, result *batch.Result) {
	h.broadcast(batchToken, Message{
		Type:             "batch_completed",
		BatchToken:       batchToken,
		TotalSucceeded:   result.TotalSucceeded,
		TotalFailed:      result.TotalFailed,
		CreditsUsed:      result.CreditsUsed,
		CreditsRemaining: result.CreditsRemaining,
		RefundWarning:    result.RefundFailureWarning != nil,
	})
}

func (h *Hub) broadcast(token string, message Message) {
	h.mutex.RLock()
	ch, exists := h.channels[token]
	h.mutex.RUnlock()
	if !exists {
		return
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling progress message: %v", err)
		return
	}

	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	ch.lastActivity = time.Now()
	for c := range ch.clients {
		select {
		case c.send <- messageBytes:
		default:
			close(c.send)
			delete(ch.clients, c)
		}
	}
}

// 채널 가져오기 또는 생성
func (h *Hub) getOrCreateChannel(token string) *channel {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	ch, exists := h.channels[token]
	if !exists {
		now := time.Now()
		ch = &channel{
			token:        token,
			clients:      make(map[*client]struct{}),
			createdAt:    now,
			lastActivity: now,
		}
		h.channels[token] = ch
		log.Printf("✅ Created progress channel: %s", token)
	}
	// lastActivity는 broadcast와 공유되므로 채널 락 아래에서만 쓴다
	ch.mutex.Lock()
	ch.lastActivity = time.Now()
	ch.mutex.Unlock()
	return ch
}

func (ch *channel) addClient(c *client) {
	ch.mutex.Lock()
	ch.clients[c] = struct{}{}
	count := len(ch.clients)
	ch.mutex.Unlock()
	log.Printf("👤 Client %s subscribed to batch %s (Subscribers: %d)", c.memberID, ch.token, count)
}

func (ch *channel) removeClient(c *client) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	if _, exists := ch.clients[c]; exists {
		close(c.send)
		delete(ch.clients, c)
		log.Printf("👋 Client %s left batch %s (Remaining: %d)", c.memberID, ch.token, len(ch.clients))
	}
}

// 빈/만료 채널 정리
func (h *Hub) cleanupChannels() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	now := time.Now()
	cleaned := 0
	for token, ch := range h.channels {
		ch.mutex.RLock()
		isEmpty := len(ch.clients) == 0
		isStale := now.Sub(ch.lastActivity) > time.Hour
		ch.mutex.RUnlock()

		if isEmpty && isStale {
			delete(h.channels, token)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Printf("🧹 Cleaned up %d stale progress channels (Active: %d)", cleaned, len(h.channels))
	}
}

// 정기적 정리 작업 시작
func (h *Hub) startCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			h.cleanupChannels()
		}
	}()
}

// HandleWebSocket - GET /ws?batch=<token>&user=<memberId>
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	batchToken := r.URL.Query().Get("batch")
	memberID := r.URL.Query().Get("user")

	if batchToken == "" {
		log.Printf("Missing batch parameter")
		conn.Close()
		return
	}

	c := &client{
		conn:       conn,
		batchToken: batchToken,
		memberID:   memberID,
		send:       make(chan []byte, 64),
	}

	log.Printf("🔍 New progress connection - Batch: %s, User: %s", batchToken, memberID)

	ch := h.getOrCreateChannel(batchToken)
	ch.addClient(c)

	go c.writePump()
	go c.readPump(ch)
}

// 클라이언트로부터 읽기 - 진행 채널은 수신 전용이라 close 감지만 한다
func (c *client) readPump(ch *channel) {
	defer func() {
		ch.removeClient(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
