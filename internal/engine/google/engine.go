// Package google provides a streaming engine backed by Google Cloud
// Speech-to-Text. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"github.com/duychung-keytechx/speech-demo/internal/engine"
)

var errForeignState = errors.New("google: state was not created by this engine")

// Engine implements engine.Engine over Google streaming recognition.
// One Engine holds a single shared API client; each session gets its own
// recognition stream inside its state.
type Engine struct {
	client *speech.Client
	// ctx is the process-scoped context recognition streams are opened
	// on. A session's stream spans many HTTP requests and must outlive
	// the request that created it.
	ctx context.Context
}

// New creates a new Google-backed engine. ctx must stay alive for the
// engine's whole lifetime; cancelling it tears down every open stream.
func New(ctx context.Context, opts ...option.ClientOption) (*Engine, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		if status.Code(err) == codes.Unavailable {
			return nil, fmt.Errorf("%w: %v", engine.ErrModelUnavailable, err)
		}
		return nil, err
	}
	return &Engine{client: c, ctx: ctx}, nil
}

// Close releases the shared API client.
func (e *Engine) Close() error {
	return e.client.Close()
}

type state struct {
	stream speechpb.Speech_StreamingRecognizeClient

	mu       sync.Mutex
	finals   []string
	interim  string
	language string

	done    chan struct{}
	recvErr error
}

// InitState opens a recognition stream, sends the streaming config as the
// first message, and starts the response collector.
//
// The stream is deliberately opened on the engine's context, not the
// caller's: the start request's context dies when its handler returns,
// while the stream has to keep serving chunk requests until Finalize.
func (e *Engine) InitState(_ context.Context, cfg engine.Config) (engine.State, error) {
	stream, err := e.client.StreamingRecognize(e.ctx)
	if err != nil {
		if status.Code(err) == codes.Unavailable {
			return nil, fmt.Errorf("%w: %v", engine.ErrModelUnavailable, err)
		}
		return nil, err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(cfg.SampleRateHz),
					LanguageCode:    cfg.LanguageCode,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	st := &state{
		stream: stream,
		done:   make(chan struct{}),
	}
	go st.collect()
	return st, nil
}

// Step converts samples to LINEAR16, sends them, and returns the transcript
// collected so far. Empty chunks are accepted without touching the stream.
func (e *Engine) Step(_ context.Context, est engine.State, samples []float32) (engine.Result, error) {
	st, ok := est.(*state)
	if !ok {
		return engine.Result{}, errForeignState
	}

	if len(samples) > 0 {
		if err := st.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: pcm16le(samples),
			},
		}); err != nil {
			return st.snapshot(), err
		}
	}
	return st.snapshot(), nil
}

// Finalize half-closes the stream, waits for the collector to drain the
// remaining responses, and returns the settled transcript.
func (e *Engine) Finalize(ctx context.Context, est engine.State) (engine.Result, error) {
	st, ok := est.(*state)
	if !ok {
		return engine.Result{}, errForeignState
	}

	if err := st.stream.CloseSend(); err != nil {
		return st.snapshot(), err
	}
	select {
	case <-st.done:
	case <-ctx.Done():
		return st.snapshot(), ctx.Err()
	}

	st.mu.Lock()
	recvErr := st.recvErr
	st.mu.Unlock()
	if recvErr != nil {
		return st.snapshot(), recvErr
	}
	return st.snapshot(), nil
}

// collect drains recognition responses into the state until the stream ends.
func (s *state) collect() {
	defer close(s.done)
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			s.mu.Lock()
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.recvErr = err
			}
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				s.finals = append(s.finals, alt.Transcript)
				s.interim = ""
			} else {
				s.interim = alt.Transcript
			}
			if r.LanguageCode != "" {
				s.language = r.LanguageCode
			}
		}
		s.mu.Unlock()
	}
}

func (s *state) snapshot() engine.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := s.finals
	if s.interim != "" {
		parts = append(parts[:len(parts):len(parts)], s.interim)
	}
	return engine.Result{
		Language: s.language,
		Text:     strings.Join(parts, " "),
	}
}

// pcm16le converts float32 samples in [-1, 1] to little-endian 16-bit PCM.
func pcm16le(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}
