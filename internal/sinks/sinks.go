// Package sinks implements the fan-out adapters of the Call Pipeline
// (spec §4.2/§4.6): one file per downstream service, each independently
// failable. The iCAD Player, iCAD Alerting and webhook sinks check a
// talkgroup allow-list; the other sinks send every call they are given.
package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// Artifacts bundles the scratch-directory paths a sink may need alongside
// the call's metadata.
type Artifacts struct {
	ScratchDir string
	WavPath    string
	M4APath    string
}

// Sink is the common contract every fan-out adapter implements.
type Sink interface {
	Name() string
	Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error
}

const defaultTimeout = 10 * time.Second

func httpClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// postJSON POSTs body as JSON to url with optional extra headers, treating
// any non-2xx status as failure.
func postJSON(ctx context.Context, url string, body any, headers map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(req)
}

// multipartField is one non-file field of a multipart/form-data request.
type multipartField struct {
	name  string
	value string
}

// multipartFile is one file field of a multipart/form-data request, whose
// content is read from disk at send time.
type multipartFile struct {
	field    string
	filename string
	path     string
	content  []byte // used when path is empty
}

func postMultipart(ctx context.Context, url string, fields []multipartField, files []multipartFile, headers map[string]string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return fmt.Errorf("create form file %s: %w", f.field, err)
		}
		if f.path != "" {
			src, err := os.Open(f.path)
			if err != nil {
				return fmt.Errorf("open %s: %w", f.path, err)
			}
			_, copyErr := io.Copy(part, src)
			src.Close()
			if copyErr != nil {
				return fmt.Errorf("copy %s: %w", f.path, copyErr)
			}
		} else if _, err := part.Write(f.content); err != nil {
			return fmt.Errorf("write content for %s: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(req)
}

func do(req *http.Request) error {
	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// TalkgroupAllowed delegates to the shared config gate so every sink uses
// the exact same "*"-or-exact-match semantics.
func TalkgroupAllowed(allowed []string, talkgroup int) bool {
	return config.TalkgroupAllowed(allowed, talkgroup)
}

func wavPath(art Artifacts, rec *callrecord.CallRecord) string {
	if art.WavPath != "" {
		return art.WavPath
	}
	return filepath.Join(art.ScratchDir, rec.Filename)
}

// jsonSiblingName derives the sidecar filename from a WAV filename by
// extension substitution, per the CallRecord invariant (spec §3).
func jsonSiblingName(wavFilename string) string {
	return wavFilename[:len(wavFilename)-len(filepath.Ext(wavFilename))] + ".json"
}
