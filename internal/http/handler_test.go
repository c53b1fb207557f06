package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/duychung-keytechx/speech-demo/internal/engine"
	"github.com/duychung-keytechx/speech-demo/internal/engine/mock"
	"github.com/duychung-keytechx/speech-demo/internal/events"
	"github.com/duychung-keytechx/speech-demo/internal/session"
)

var testEngineCfg = engine.Config{
	ChunkSizeSec:  1.0,
	UnfixedChunks: 2,
	UnfixedTokens: 5,
	SampleRateHz:  16000,
}

func newTestServer(t *testing.T, eng engine.Engine) (*httptest.Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(eng, time.Minute)
	t.Cleanup(registry.Shutdown)

	c := NewController(eng, testEngineCfg, registry, events.New(&events.Config{Enabled: false}))
	srv := httptest.NewServer(NewRouter(c))
	t.Cleanup(srv.Close)
	return srv, registry
}

// silentSecond is one second of silence at 16 kHz as raw float32 LE bytes.
func silentSecond() []byte {
	return make([]byte, 16000*4)
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/start", "", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("start: decode: %v", err)
	}
	if body.SessionID == "" {
		t.Fatal("start: empty session_id")
	}
	return body.SessionID
}

func postChunk(t *testing.T, srv *httptest.Server, sessionId, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/chunk?session_id="+sessionId, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	return resp
}

func decodeTranscript(t *testing.T, resp *http.Response) map[string]*string {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]*string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	return body
}

func TestEndToEnd_StartChunkChunkFinish(t *testing.T) {
	srv, registry := newTestServer(t, mock.New())

	id := startSession(t, srv)

	for i := 0; i < 2; i++ {
		resp := postChunk(t, srv, id, "application/octet-stream", silentSecond())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chunk %d: expected 200, got %d", i, resp.StatusCode)
		}
		body := decodeTranscript(t, resp)
		if _, ok := body["text"]; !ok {
			t.Fatalf("chunk %d: missing text field", i)
		}
		if body["text"] == nil || body["language"] == nil {
			t.Fatalf("chunk %d: text/language must never be null", i)
		}
	}

	resp, err := http.Post(srv.URL+"/api/finish?session_id="+id, "", nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d", resp.StatusCode)
	}
	body := decodeTranscript(t, resp)
	if text, ok := body["text"]; !ok || text == nil {
		t.Fatal("finish: text field must be present and non-null")
	}

	// Session is gone afterwards.
	if registry.Len() != 0 {
		t.Errorf("expected empty registry after finish, got %d", registry.Len())
	}
	resp = postChunk(t, srv, id, "application/octet-stream", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("chunk after finish: expected 400, got %d", resp.StatusCode)
	}
}

func TestChunk_MalformedLengthLeavesSessionUnmutated(t *testing.T) {
	srv, _ := newTestServer(t, mock.New())
	id := startSession(t, srv)

	// Accumulate one decode window so the session has text.
	resp := postChunk(t, srv, id, "application/octet-stream", silentSecond())
	before := decodeTranscript(t, resp)

	resp = postChunk(t, srv, id, "application/octet-stream", []byte{1, 2, 3})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for 3-byte body, got %d", resp.StatusCode)
	}

	// An empty follow-up chunk shows the transcript did not move.
	resp = postChunk(t, srv, id, "application/octet-stream", nil)
	after := decodeTranscript(t, resp)
	if *after["text"] != *before["text"] {
		t.Errorf("session mutated by rejected chunk: %q -> %q", *before["text"], *after["text"])
	}
}

func TestChunk_UnsupportedMediaType(t *testing.T) {
	srv, _ := newTestServer(t, mock.New())
	id := startSession(t, srv)

	resp := postChunk(t, srv, id, "application/json", []byte(`{}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for wrong content type, got %d", resp.StatusCode)
	}
}

func TestChunk_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, mock.New())

	resp := postChunk(t, srv, "deadbeef", "application/octet-stream", silentSecond())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown session, got %d", resp.StatusCode)
	}
}

func TestChunk_EmptyBodyDoesNotFault(t *testing.T) {
	srv, _ := newTestServer(t, mock.New())
	id := startSession(t, srv)

	resp := postChunk(t, srv, id, "application/octet-stream", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for empty chunk, got %d", resp.StatusCode)
	}
	body := decodeTranscript(t, resp)
	if body["text"] == nil || *body["text"] != "" {
		t.Error("expected empty text for empty chunk")
	}
}

func TestFinish_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, mock.New())

	resp, err := http.Post(srv.URL+"/api/finish?session_id=deadbeef", "", nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// failingFinalizeEngine wraps the mock engine but fails every Finalize.
type failingFinalizeEngine struct {
	*mock.Engine
}

func (e *failingFinalizeEngine) Finalize(context.Context, engine.State) (engine.Result, error) {
	return engine.Result{}, errors.New("decoder crashed")
}

func TestFinish_FinalizeFailureReturnsLastTranscript(t *testing.T) {
	srv, registry := newTestServer(t, &failingFinalizeEngine{mock.New()})
	id := startSession(t, srv)

	resp := postChunk(t, srv, id, "application/octet-stream", silentSecond())
	chunkBody := decodeTranscript(t, resp)

	resp, err := http.Post(srv.URL+"/api/finish?session_id="+id, "", nil)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize failure must not fail the request, got %d", resp.StatusCode)
	}
	body := decodeTranscript(t, resp)
	if *body["text"] != *chunkBody["text"] {
		t.Errorf("expected last chunk transcript %q, got %q", *chunkBody["text"], *body["text"])
	}

	// Removal is unconditional.
	if registry.Len() != 0 {
		t.Errorf("expected session removed despite finalize failure, got %d", registry.Len())
	}
}

func TestStart_NoEngineLoaded(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/start", "", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 without engine, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, mock.New())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || !body.ModelLoaded {
		t.Errorf("unexpected health %+v", body)
	}
}

func TestHealth_NoEngine(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		ModelLoaded bool `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ModelLoaded {
		t.Error("expected model_loaded false")
	}
}
