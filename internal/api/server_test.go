package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"specbuddy/internal/api"
	"specbuddy/internal/engine"
	"specbuddy/internal/llm"
	"specbuddy/internal/session"
	"specbuddy/internal/unsplash"
)

const structuredReply = `{"product":"sofa","budget":"₹30,000","color":"grey","delivery_mode":"pickup"}<END_OF_SPECS><FOLLOW_UP> Want fabric options too?`

func newTestServer(t *testing.T, mock *llm.MockClient) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	store := session.NewMemoryStore()
	images := unsplash.NewClient("", otel.Tracer("test"), logger)
	eng := engine.New(store, mock, images, nil, engine.StrategyStructured, otel.Tracer("test"), logger)
	return api.NewServer(eng, "*", logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func postJSON(t *testing.T, srv http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatCollection(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient("What's your budget?"))

	w := postJSON(t, srv, "/chat", `{"message":"I want a sofa","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "What's your budget?", resp["reply"])
	assert.NotContains(t, resp, "conversation_ended")
	assert.NotContains(t, resp, "summary")
}

func TestChatFinalization(t *testing.T) {
	mock := llm.NewMockClient("Nice, a sofa!", structuredReply)
	srv := newTestServer(t, mock)

	w := postJSON(t, srv, "/chat", `{"message":"a grey sofa","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, srv, "/chat", `{"message":"done","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reply   string `json:"reply"`
		Summary *struct {
			Product      string `json:"product"`
			DeliveryMode string `json:"delivery_mode"`
		} `json:"summary"`
		ImageQuery        string  `json:"image_query"`
		ImageURL          *string `json:"image_url"`
		ConversationEnded bool    `json:"conversation_ended"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.ConversationEnded)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "sofa", resp.Summary.Product)
	assert.Equal(t, "Pickup from Store", resp.Summary.DeliveryMode)
	assert.Equal(t, "sofa grey", resp.ImageQuery)
	assert.Nil(t, resp.ImageURL) // image client disabled → explicit null
	assert.Contains(t, resp.Reply, "sofa")
}

func TestChatExtractionFailure(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient("no structure here, sorry"))

	w := postJSON(t, srv, "/chat", `{"message":"done","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no structure here, sorry", resp["reply"])
	assert.Equal(t, "summary extraction failed", resp["error"])
	assert.Equal(t, true, resp["conversation_ended"])
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient())

	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"session_id":"s1"}`},
		{"blank message", `{"message":"   ","session_id":"s1"}`},
		{"missing session_id", `{"message":"hello"}`},
		{"invalid json", `{"message":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, srv, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestChatLLMFailure(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Err = assert.AnError
	srv := newTestServer(t, mock)

	w := postJSON(t, srv, "/chat", `{"message":"hello","session_id":"s1"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "assistant unavailable", resp["error"])
	assert.NotContains(t, resp["error"], "assert.AnError")
}

func TestSalesTrainer(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient("Teacher: excellent question!"))

	w := postJSON(t, srv, "/sales_trainer", `{"message":"how do I handle price objections?","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Teacher: excellent question!", resp["reply"])
}

func TestResetDefaultsAndIdempotence(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient())

	w := postJSON(t, srv, "/reset", `{"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Conversation reset for s1", resp["status"])

	// Second reset on the same id still succeeds.
	w = postJSON(t, srv, "/reset", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Omitted session_id falls back to the default session.
	w = postJSON(t, srv, "/reset", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Conversation reset for default", resp["status"])
}

func TestResetClearsConversation(t *testing.T) {
	mock := llm.NewMockClient()
	srv := newTestServer(t, mock)

	postJSON(t, srv, "/chat", `{"message":"a red bike","session_id":"s1"}`)
	postJSON(t, srv, "/reset", `{"session_id":"s1"}`)
	postJSON(t, srv, "/chat", `{"message":"a green tent","session_id":"s1"}`)

	// After reset the engine sees only the new message.
	require.Len(t, mock.LastTurns, 1)
	assert.Equal(t, "a green tent", mock.LastTurns[0].Content)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient())

	for _, path := range []string{"/chat", "/sales_trainer", "/reset"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "path %s", path)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, llm.NewMockClient())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
