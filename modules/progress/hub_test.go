package progress

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirage-studio-server/modules/batch"
)

func dialHub(t *testing.T, server *httptest.Server, batchToken string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?batch=" + batchToken + "&user=member-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastsTaskSettled(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialHub(t, server, "batch-1")
	defer conn.Close()

	// 구독 등록이 비동기라 잠깐 대기
	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		ch, ok := hub.channels["batch-1"]
		if !ok {
			return false
		}
		ch.mutex.RLock()
		defer ch.mutex.RUnlock()
		return len(ch.clients) == 1
	}, time.Second, 10*time.Millisecond)

	hub.TaskSettled("batch-1", batch.Outcome{
		ArtifactID:    7,
		FailureReason: batch.ReasonTimeout,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "task_settled", msg.Type)
	assert.Equal(t, int64(7), msg.ArtifactID)
	assert.Equal(t, "TIMEOUT", msg.FailureReason)
}

func TestHubBroadcastsBatchCompleted(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn := dialHub(t, server, "batch-2")
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		defer hub.mutex.RUnlock()
		_, ok := hub.channels["batch-2"]
		return ok
	}, time.Second, 10*time.Millisecond)

	hub.BatchCompleted("batch-2", &batch.Result{
		TotalSucceeded:   3,
		TotalFailed:      1,
		CreditsUsed:      6,
		CreditsRemaining: 94,
		RefundFailureWarning: &batch.RefundWarning{
			Amount: 2,
		},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, "batch_completed", msg.Type)
	assert.Equal(t, 3, msg.TotalSucceeded)
	assert.Equal(t, 1, msg.TotalFailed)
	assert.True(t, msg.RefundWarning)
}

func TestHubBroadcastWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub()
	// 구독자 없는 토큰으로의 브로드캐스트는 패닉 없이 무시된다
	hub.TaskSettled("nobody-listening", batch.Outcome{Succeeded: true, ArtifactID: 1})
	hub.BatchCompleted("nobody-listening", &batch.Result{})

	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	assert.Empty(t, hub.channels)
}

func TestHubConcurrentSubscribeAndBroadcast(t *testing.T) {
	// 구독 등록과 settle 브로드캐스트가 겹쳐도 안전해야 한다 (-race로 검증)
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.getOrCreateChannel("busy-batch")
		}()
		go func() {
			defer wg.Done()
			hub.TaskSettled("busy-batch", batch.Outcome{Succeeded: true, ArtifactID: 1})
		}()
	}
	wg.Wait()

	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	assert.Contains(t, hub.channels, "busy-batch")
}

func TestHubMessageShape(t *testing.T) {
	raw, err := json.Marshal(Message{
		Type:       "task_settled",
		BatchToken: "b",
		ArtifactID: 1,
		Succeeded:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"task_settled"`)
	assert.Contains(t, string(raw), `"batchToken":"b"`)
	// 빈 필드는 생략돼 배치 완료 메시지와 구분이 깔끔하다
	assert.NotContains(t, string(raw), "totalSucceeded")
}
