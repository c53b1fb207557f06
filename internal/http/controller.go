// Package http exposes the streaming transcription protocol over HTTP:
// start a session, upload audio chunks, finish for the final transcript.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/duychung-keytechx/speech-demo/internal/audio"
	"github.com/duychung-keytechx/speech-demo/internal/engine"
	"github.com/duychung-keytechx/speech-demo/internal/events"
	"github.com/duychung-keytechx/speech-demo/internal/models"
	"github.com/duychung-keytechx/speech-demo/internal/observability/logging"
	"github.com/duychung-keytechx/speech-demo/internal/observability/metrics"
	"github.com/duychung-keytechx/speech-demo/internal/session"
)

// Controller orchestrates the start/chunk/finish handlers against the
// session registry and the streaming engine. It never buffers audio itself;
// everything below the decode window is the engine's responsibility.
type Controller struct {
	eng       engine.Engine
	engineCfg engine.Config // captured into each session at start time
	registry  *session.Registry
	publisher *events.Publisher
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewController creates the request controller. eng may be nil when no model
// is loaded; all API calls then fail with a model-unavailable error while
// /health keeps answering.
func NewController(eng engine.Engine, engineCfg engine.Config, registry *session.Registry, publisher *events.Publisher) *Controller {
	return &Controller{
		eng:       eng,
		engineCfg: engineCfg,
		registry:  registry,
		publisher: publisher,
		logger:    logging.WithComponent("controller"),
		metrics:   metrics.DefaultMetrics,
	}
}

// handleStart creates a new transcription session.
func (c *Controller) handleStart(w http.ResponseWriter, r *http.Request) {
	if c.eng == nil {
		writeError(w, http.StatusInternalServerError, "Model not loaded")
		return
	}

	id, err := c.registry.Create(r.Context(), c.engineCfg)
	if err != nil {
		c.logger.Error().Err(err).Msg("Session create failed")
		if errors.Is(err, engine.ErrModelUnavailable) {
			writeError(w, http.StatusInternalServerError, "Model not loaded")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to start session")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.StartResponse{SessionID: id})
}

// handleChunk feeds one audio upload into the session's engine state and
// returns the current best transcript.
func (c *Controller) handleChunk(w http.ResponseWriter, r *http.Request) {
	if c.eng == nil {
		writeError(w, http.StatusInternalServerError, "Model not loaded")
		return
	}

	sessionId := r.URL.Query().Get("session_id")
	s, err := c.registry.Acquire(sessionId)
	if err != nil {
		c.metrics.RecordChunkRejected("invalid_session")
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}
	defer s.Release()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		c.metrics.RecordChunkRejected("body_read")
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	samples, err := audio.DecodeFrame(r.Header.Get("Content-Type"), raw)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrUnsupportedMediaType):
			c.metrics.RecordChunkRejected("media_type")
			writeError(w, http.StatusBadRequest, "Expected application/octet-stream")
		case errors.Is(err, audio.ErrMalformedAudio):
			c.metrics.RecordChunkRejected("malformed_audio")
			writeError(w, http.StatusBadRequest, "Float32 bytes length not multiple of 4")
		default:
			c.metrics.RecordChunkRejected("malformed_audio")
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	start := time.Now()
	res, err := c.eng.Step(r.Context(), s.EngineState, samples)
	c.metrics.RecordEngineCall("step", err, time.Since(start).Seconds())
	if err != nil {
		c.logger.Error().Err(err).Str("sessionId", s.ID).Msg("Engine step failed")
		writeError(w, http.StatusInternalServerError, "Transcription failed")
		return
	}

	s.Language = res.Language
	s.Text = res.Text
	c.metrics.RecordChunk(len(raw))
	c.publishTranscript(s.ID, res, false)

	writeJSON(w, http.StatusOK, models.TranscriptResponse{Language: res.Language, Text: res.Text})
}

// handleFinish finalizes the session's engine state and removes the session.
// The session is removed regardless of finalize success; a finalize failure
// degrades to returning the last transcript produced by chunk calls rather
// than losing work already done.
func (c *Controller) handleFinish(w http.ResponseWriter, r *http.Request) {
	if c.eng == nil {
		writeError(w, http.StatusInternalServerError, "Model not loaded")
		return
	}

	sessionId := r.URL.Query().Get("session_id")
	s, err := c.registry.Acquire(sessionId)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session_id")
		return
	}
	defer s.Release()

	start := time.Now()
	res, finErr := c.eng.Finalize(r.Context(), s.EngineState)
	c.metrics.RecordEngineCall("finalize", finErr, time.Since(start).Seconds())
	if finErr != nil {
		c.logger.Warn().Err(finErr).Str("sessionId", s.ID).Msg("Finalize failed, returning last transcript")
		res = engine.Result{Language: s.Language, Text: s.Text}
	} else {
		s.Language = res.Language
		s.Text = res.Text
	}

	if _, err := c.registry.Remove(s.ID); err == nil {
		c.metrics.RecordSessionFinished(time.Since(s.CreatedAt).Seconds())
	}
	c.publishTranscript(s.ID, res, true)

	writeJSON(w, http.StatusOK, models.TranscriptResponse{Language: res.Language, Text: res.Text})
}

// handleHealth reports liveness and whether a model is loaded.
func (c *Controller) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:      "ok",
		ModelLoaded: c.eng != nil,
	})
}

// publishTranscript fans the transcript out to Kafka, best-effort. The
// publisher logs its own failures; a broker outage never fails the request.
func (c *Controller) publishTranscript(sessionId string, res engine.Result, final bool) {
	if c.publisher == nil {
		return
	}

	eventType := "session.transcript.partial"
	publish := c.publisher.PublishPartial
	if final {
		eventType = "session.transcript.final"
		publish = c.publisher.PublishFinal
	}

	ev := models.TranscriptEvent{
		EventType: eventType,
		SessionID: sessionId,
		Timestamp: time.Now().UnixMilli(),
		Language:  res.Language,
		Text:      res.Text,
	}
	if err := publish(context.Background(), ev); err != nil {
		c.logger.Debug().Err(err).Str("sessionId", sessionId).Msg("Transcript event not published")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
