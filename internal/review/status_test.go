package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for raw, want := range map[string]Status{
		"pending":    StatusPending,
		"Approved":   StatusApproved,
		" REJECTED ": StatusRejected,
	} {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseStatus("escalated")
	assert.Error(t, err)
}

func TestClassifyStatusDefaultsToPending(t *testing.T) {
	assert.Equal(t, StatusPending, classifyStatus(nil))
	assert.Equal(t, StatusPending, classifyStatus(strPtr("")))
	assert.Equal(t, StatusPending, classifyStatus(strPtr("on-hold")))
	assert.Equal(t, StatusApproved, classifyStatus(strPtr("approved")))
}

func TestStatusJSON(t *testing.T) {
	raw, err := json.Marshal(Submission{ID: "1", Status: StatusRejected})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"rejected"`)

	var decoded struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"approved"}`), &decoded))
	assert.Equal(t, StatusApproved, decoded.Status)
}
