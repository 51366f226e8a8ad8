package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Empty(t *testing.T) {
	out, err := executeCommand(t, "log", "--store", tempStore(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No compilations recorded.")
}

func TestLog_Entries(t *testing.T) {
	path := importedStore(t)

	for _, formula := range []string{"PK1,LA", "PK1,LA,O=/AMOUNT", "PK1,LA"} {
		_, err := executeCommand(t, "compile", formula, "--light", "--record", "--store", path)
		require.NoError(t, err)
	}
	_, err := executeCommand(t, "compile", "PK1,LA,F={P}0,K=D_C", "-p", "D", "--record", "--store", path)
	require.NoError(t, err)

	out, err := executeCommand(t, "log", "--store", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []LogEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "PK1,LA", resp.Data[0].Formula)
	assert.Equal(t, []string{}, resp.Data[0].Params)
	assert.Equal(t, []string{"D"}, resp.Data[2].Params)
	assert.Less(t, resp.Data[0].Seq, resp.Data[1].Seq)

	out, err = executeCommand(t, "log", "--store", path, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "PK1,LA,F={P}0,K=D_C")
	assert.NotContains(t, out, "O=/AMOUNT")

	out, err = executeCommand(t, "log", "--store", path, "--request", resp.Data[1].RequestID, "--format", "json")
	require.NoError(t, err)
	var byRequest struct {
		Data []LogEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &byRequest))
	require.Len(t, byRequest.Data, 1)
	assert.Equal(t, resp.Data[1].ID, byRequest.Data[0].ID)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}
