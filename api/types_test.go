package api

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/docqa/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRequest_History(t *testing.T) {
	var req QueryRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"question": "How much notice?",
		"chat_history": [
			{"role": " User ", "content": "What about termination?"},
			{"role": "ASSISTANT", "content": "Thirty days."}
		]
	}`), &req))

	history := req.History()
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
	assert.Equal(t, "Thirty days.", history[1].Content)
}

func TestQueryRequest_NoHistory(t *testing.T) {
	assert.Nil(t, QueryRequest{Question: "q"}.History())
}

func TestQueryResponse_JSONShape(t *testing.T) {
	data, err := json.Marshal(QueryResponse{
		Answer:  "No relevant information found in the document.",
		Sources: []types.Source{},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"No relevant information found in the document.","sources":[],"cached":false}`, string(data))
}
