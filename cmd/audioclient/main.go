package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/duychung-keytechx/speech-demo/internal/audio"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

const engineRate = 16000

// Stream in 250ms chunks to simulate live capture.
const chunkSeconds = 0.25

func main() {
	audioFile := flag.String("audio", "testdata/sample.wav", "Path to WAV file (PCM 16-bit mono)")
	serverAddr := flag.String("server", "http://localhost:8080", "Gateway base URL")
	flag.Parse()

	samples, sampleRate := readWAV(*audioFile)
	log.Printf("Loaded %d samples at %d Hz", len(samples), sampleRate)

	samples = audio.ResampleLinear(samples, sampleRate, engineRate)
	log.Printf("Resampled to %d samples at %d Hz", len(samples), engineRate)

	sessionId := startSession(*serverAddr)
	log.Printf("Session started: %s", sessionId)

	chunkSamples := int(chunkSeconds * engineRate)
	for off := 0; off < len(samples); off += chunkSamples {
		end := off + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}

		lang, text := postChunk(*serverAddr, sessionId, samples[off:end])
		if text != "" {
			log.Printf("[%s] %s", lang, text)
		}

		// Simulate real-time streaming
		time.Sleep(time.Duration(chunkSeconds * float64(time.Second)))
	}

	lang, text := finishSession(*serverAddr, sessionId)
	log.Printf("Final [%s]: %s", lang, text)
}

// readWAV loads a PCM 16-bit mono WAV file as float32 samples in [-1, 1].
func readWAV(path string) ([]float32, int) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 {
		log.Fatal("Only PCM format supported")
	}
	if numChannels != 1 {
		log.Fatal("Only mono audio supported")
	}
	if bitsPerSample != 16 {
		log.Fatal("Only 16-bit PCM supported")
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		log.Fatalf("Failed to read audio: %v", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return samples, int(sampleRate)
}

func startSession(base string) string {
	resp, err := http.Post(base+"/api/start", "", nil)
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("start: status %d", resp.StatusCode)
	}

	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("start: decode: %v", err)
	}
	return body.SessionID
}

func postChunk(base, sessionId string, samples []float32) (string, string) {
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}

	url := fmt.Sprintf("%s/api/chunk?session_id=%s", base, sessionId)
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(raw))
	if err != nil {
		log.Fatalf("chunk: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("chunk: status %d", resp.StatusCode)
	}
	return decodeTranscript(resp.Body)
}

func finishSession(base, sessionId string) (string, string) {
	url := fmt.Sprintf("%s/api/finish?session_id=%s", base, sessionId)
	resp, err := http.Post(url, "", nil)
	if err != nil {
		log.Fatalf("finish: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("finish: status %d", resp.StatusCode)
	}
	return decodeTranscript(resp.Body)
}

func decodeTranscript(r io.Reader) (string, string) {
	var body struct {
		Language string `json:"language"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		log.Fatalf("decode transcript: %v", err)
	}
	return body.Language, body.Text
}
