package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// TranscribeClient uploads the WAV plus the sidecar JSON to a transcription
// endpoint and parses its JSON response into a Transcript, grounded on the
// original upload_to_transcribe.
type TranscribeClient struct {
	cfg config.TranscribeConfig
}

func NewTranscribeClient(cfg config.TranscribeConfig) *TranscribeClient {
	return &TranscribeClient{cfg: cfg}
}

// Transcribe uploads wavBytes and the call record JSON, returning the
// decoded transcript on success.
func (c *TranscribeClient) Transcribe(ctx context.Context, wavBytes []byte, rec *callrecord.CallRecord) (*callrecord.Transcript, error) {
	sidecar, err := rec.MarshalSidecar()
	if err != nil {
		return nil, fmt.Errorf("marshal sidecar: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	audioPart, err := w.CreateFormFile("audioFile", rec.Filename)
	if err != nil {
		return nil, fmt.Errorf("create audio part: %w", err)
	}
	if _, err := io.Copy(audioPart, bytes.NewReader(wavBytes)); err != nil {
		return nil, fmt.Errorf("write audio part: %w", err)
	}

	jsonPart, err := w.CreateFormFile("jsonFile", jsonSiblingName(rec.Filename))
	if err != nil {
		return nil, fmt.Errorf("create json part: %w", err)
	}
	if _, err := jsonPart.Write(sidecar); err != nil {
		return nil, fmt.Errorf("write json part: %w", err)
	}

	if len(c.cfg.WhisperConfigData) > 0 {
		if err := w.WriteField("whisper_config_data", string(c.cfg.WhisperConfigData)); err != nil {
			return nil, fmt.Errorf("write whisper config field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var transcript callrecord.Transcript
	if err := json.Unmarshal(body, &transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &transcript, nil
}

// StubTranscript is the placeholder assigned when transcription is disabled
// or not allowed for a talkgroup (spec §4.2 stage 8).
func StubTranscript() *callrecord.Transcript {
	return &callrecord.Transcript{
		Transcript:         "No Transcribe configured",
		Segments:           []callrecord.TranscriptSegment{},
		ProcessTimeSeconds: 0,
		Addresses:          "",
	}
}
