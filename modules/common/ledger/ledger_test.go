package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultObject(t *testing.T) {
	result, err := parseResult(`{"applied":true,"duplicate":false,"balance_remaining":42,"error_code":""}`)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 42, result.Remaining)
}

func TestParseResultSingleElementArray(t *testing.T) {
	result, err := parseResult(`[{"applied":false,"duplicate":true,"balance_remaining":7}]`)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, 7, result.Remaining)
}

func TestParseResultInsufficient(t *testing.T) {
	result, err := parseResult(`{"applied":false,"balance_remaining":1,"error_code":"INSUFFICIENT"}`)
	require.NoError(t, err)
	assert.Equal(t, FailureReasonInsufficient, result.FailureReason)
	assert.Equal(t, 1, result.Remaining)
}

func TestParseResultGarbage(t *testing.T) {
	_, err := parseResult(`definitely not json`)
	assert.Error(t, err)

	_, err = parseResult(`[]`)
	assert.Error(t, err)
}

func TestRejectionError(t *testing.T) {
	assert.NoError(t, rejectionError(&Result{Applied: true}))
	assert.NoError(t, rejectionError(&Result{Duplicate: true, Remaining: 5}))

	// 거절 코드가 있으면 잔액이 같이 와도 성공이 아니다
	err := rejectionError(&Result{FailureReason: "MEMBER_NOT_FOUND", Remaining: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMBER_NOT_FOUND")
}

func TestValidateCall(t *testing.T) {
	assert.NoError(t, validateCall("member-1", 4, "tok"))
	assert.Error(t, validateCall("", 4, "tok"))
	assert.Error(t, validateCall("member-1", 0, "tok"))
	assert.Error(t, validateCall("member-1", -2, "tok"))
	assert.Error(t, validateCall("member-1", 4, ""))
}

func TestNewTokenUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok := NewToken()
		require.NotEmpty(t, tok)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}
