package generate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirage-studio-server/modules/batch"
	"mirage-studio-server/modules/common/ledger"
)

func TestWriteBatchResultSingleSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBatchResult(w, 1, &batch.Result{
		Results: []batch.Outcome{
			{Succeeded: true, ArtifactID: 11, AssetURL: "https://signed/a.png"},
		},
		CreditsUsed:      2,
		CreditsRemaining: 8,
		TotalRequested:   1,
		TotalSucceeded:   1,
		BatchToken:       "tok-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp SingleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.ArtifactID)
	assert.Equal(t, "https://signed/a.png", resp.AssetURL)
	assert.Equal(t, 2, resp.CreditsUsed)
	assert.Equal(t, 8, resp.CreditsRemaining)
}

func TestWriteBatchResultSingleFailure(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBatchResult(w, 1, &batch.Result{
		Results:          []batch.Outcome{{ArtifactID: 11, FailureReason: batch.ReasonTimeout}},
		CreditsRemaining: 10,
		TotalRequested:   1,
		TotalFailed:      1,
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "TIMEOUT", resp["failureReason"])
	assert.Equal(t, float64(0), resp["creditsUsed"])
	assert.Equal(t, float64(10), resp["creditsRemaining"])
}

func TestWriteBatchResultPartialFailureIsOK(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBatchResult(w, 3, &batch.Result{
		Results: []batch.Outcome{
			{Succeeded: true, ArtifactID: 1, AssetURL: "https://signed/1.png"},
			{ArtifactID: 2, FailureReason: batch.ReasonGeneration},
			{Succeeded: true, ArtifactID: 3, AssetURL: "https://signed/3.png"},
		},
		CreditsUsed:      4,
		CreditsRemaining: 90,
		TotalRequested:   3,
		TotalSucceeded:   2,
		TotalFailed:      1,
		BatchToken:       "tok-2",
	})

	// 부분 실패는 요청 실패가 아니다
	assert.Equal(t, http.StatusOK, w.Code)

	var resp batch.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 2, resp.TotalSucceeded)
	assert.Nil(t, resp.RefundFailureWarning)
}

func TestWriteBatchResultCarriesRefundWarning(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBatchResult(w, 2, &batch.Result{
		Results: []batch.Outcome{
			{Succeeded: true, ArtifactID: 1},
			{ArtifactID: 2, FailureReason: batch.ReasonStorage},
		},
		TotalRequested: 2,
		TotalSucceeded: 1,
		TotalFailed:    1,
		RefundFailureWarning: &batch.RefundWarning{
			Amount:    2,
			Reason:    "ledger offline",
			RequestID: "tok-3",
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp batch.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.RefundFailureWarning)
	assert.Equal(t, 2, resp.RefundFailureWarning.Amount)
}

func TestWriteBatchErrorInsufficientIs402(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBatchError(w, fmt.Errorf("wrapped: %w", ledger.ErrInsufficientCredits))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = httptest.NewRecorder()
	WriteBatchError(w, fmt.Errorf("storage down"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
