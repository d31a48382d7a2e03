package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/dedup"
	"github.com/rs/zerolog"
)

func testEnvelope(shortName string, talkgroup int, startTime int64, filename string) callrecord.AudioEnvelope {
	return callrecord.AudioEnvelope{
		InstanceID: "rec1",
		Call: callrecord.AudioCallData{
			AudioWavBase64: "",
			Metadata: callrecord.AudioMetadata{
				ShortName:  shortName,
				Talkgroup:  talkgroup,
				StartTime:  startTime,
				StopTime:   startTime + 5,
				CallLength: 5,
				Filename:   filename,
				FreqList:   []callrecord.FreqEntry{{Freq: 851e6, Len: 5}},
			},
		},
	}
}

func newTestPipeline(t *testing.T, root *config.RootDocument) *Pipeline {
	t.Helper()
	scratch := t.TempDir()
	return New(Options{
		ScratchDir: scratch,
		Root:       root,
		History:    dedup.NewMessageHistory(),
		Index:      nil,
		Log:        zerolog.Nop(),
	})
}

func TestProcessRejectsUnknownSystem(t *testing.T) {
	root := &config.RootDocument{Systems: map[string]config.SystemConfig{}}
	p := newTestPipeline(t, root)

	env := testEnvelope("nosys", 100, 1000, "nosys_100_1000.wav")
	err := p.Process(context.Background(), env, []byte("RIFF"))
	if err == nil {
		t.Fatal("expected an error for an unknown system")
	}
}

func TestProcessFansOutToWebhookAndSkipsDuplicates(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sys := config.SystemConfig{
		ShortName: "metro",
		Webhooks: []config.WebhookConfig{
			{Enabled: config.FlexBool(true), URL: srv.URL, Body: json.RawMessage(`{"tg":"{talkgroup}"}`), AllowedTalkgroups: []string{"*"}},
		},
	}
	root := &config.RootDocument{Systems: map[string]config.SystemConfig{"metro": sys}}
	p := newTestPipeline(t, root)

	env := testEnvelope("metro", 100, 1000, "metro_100_1000.wav")
	if err := p.Process(context.Background(), env, []byte("RIFF....fake-wav-body")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 webhook call, got %d", got)
	}

	// Enable duplicate detection and resend the identical call. Both sends
	// carry the same instance_id, so check_same_instance must be on for the
	// resend to count as a duplicate.
	sys.DuplicateDetection = config.DuplicateDetectionConfig{Enabled: config.FlexBool(true), StartDifferenceThreshold: 1, LengthThreshold: 1, CheckSameInstance: config.FlexBool(true)}
	root.Systems["metro"] = sys
	p = newTestPipeline(t, root)
	env2 := testEnvelope("metro", 100, 1000, "metro_100_1000_b.wav")

	if err := p.Process(context.Background(), env2, []byte("RIFF....fake-wav-body")); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}
	if err := p.Process(context.Background(), env2, []byte("RIFF....fake-wav-body")); err != nil {
		t.Fatalf("unexpected error on duplicate call: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected duplicate call to be suppressed before reaching the webhook, got %d total hits", got)
	}
}

func TestProcessCleansUpScratchFiles(t *testing.T) {
	sys := config.SystemConfig{ShortName: "metro"}
	root := &config.RootDocument{Systems: map[string]config.SystemConfig{"metro": sys}}
	p := newTestPipeline(t, root)

	env := testEnvelope("metro", 200, 2000, "metro_200_2000.wav")
	if err := p.Process(context.Background(), env, []byte("RIFF....fake-wav-body")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(p.scratchDir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch directory to be empty after processing, found %d entries", len(entries))
	}
}
