// Package audio validates inbound audio payloads and decodes them into
// PCM samples, plus an offline resampling utility for pre-recorded files.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"mime"
)

// MediaType is the only accepted content type for raw PCM uploads.
const MediaType = "application/octet-stream"

// SampleBytes is the wire size of one 32-bit float sample.
const SampleBytes = 4

var (
	// ErrUnsupportedMediaType means the request did not declare raw binary content.
	ErrUnsupportedMediaType = errors.New("expected " + MediaType)
	// ErrMalformedAudio means the payload length is not a whole number of samples.
	ErrMalformedAudio = errors.New("float32 bytes length not multiple of 4")
)

// DecodeFrame interprets raw as little-endian IEEE-754 float32 mono PCM,
// one sample per 4 bytes, in arrival order. contentType must declare raw
// binary. An empty payload decodes to an empty sample slice.
func DecodeFrame(contentType string, raw []byte) ([]float32, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != MediaType {
		return nil, ErrUnsupportedMediaType
	}
	if len(raw)%SampleBytes != 0 {
		return nil, ErrMalformedAudio
	}

	samples := make([]float32, len(raw)/SampleBytes)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*SampleBytes:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
