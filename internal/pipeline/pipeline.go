// Package pipeline implements the Call Pipeline (spec §4.2): the
// orchestrator that, given one decoded call, runs every stage in strict
// order and fans out to the configured sinks.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/archive"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/dedup"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/errs"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/index"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/metrics"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/sinks"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/transcode"
	"github.com/rs/zerolog"
)

// Options bundles the Pipeline's dependencies, built once at startup and
// shared across every worker.
type Options struct {
	ScratchDir string
	Root       *config.RootDocument
	History    *dedup.MessageHistory
	Index      *index.Client
	Log        zerolog.Logger
}

// Pipeline processes one decoded audio envelope at a time. A Pipeline is
// safe for concurrent use: the worker pool hands it calls from many
// goroutines at once, and it holds no per-call state of its own.
type Pipeline struct {
	scratchDir string
	root       *config.RootDocument
	history    *dedup.MessageHistory
	index      *index.Client
	log        zerolog.Logger
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		scratchDir: opts.ScratchDir,
		root:       opts.Root,
		history:    opts.History,
		index:      opts.Index,
		log:        opts.Log.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs the full stage sequence for one audio envelope. A non-nil
// error always carries an *errs.Error and means the call was dropped
// before any sink ran; sink failures are logged internally and never
// surface here (spec §4.2's error policy).
func (p *Pipeline) Process(ctx context.Context, env callrecord.AudioEnvelope, wavBytes []byte) error {
	sys, ok := p.root.System(env.Call.Metadata.ShortName)
	if !ok {
		metrics.PipelineCallsTotal.WithLabelValues("dropped_unknown_system").Inc()
		return errs.Validation("system-lookup", fmt.Errorf("unknown system %q", env.Call.Metadata.ShortName))
	}

	rec := callrecord.New(env, time.Now().UTC())
	log := p.log.With().Str("short_name", rec.ShortName).Int("talkgroup", rec.Talkgroup).Logger()

	if p.isDuplicate(sys, rec) {
		metrics.PipelineCallsTotal.WithLabelValues("duplicate").Inc()
		metrics.DuplicateRejectedTotal.WithLabelValues(rec.ShortName).Inc()
		log.Info().Msg("duplicate call rejected")
		return nil
	}

	wavPath := filepath.Join(p.scratchDir, rec.Filename)
	m4aPath := strings.TrimSuffix(wavPath, ".wav") + ".m4a"
	jsonPath := strings.TrimSuffix(wavPath, ".wav") + ".json"
	defer p.cleanup(wavPath, m4aPath, jsonPath, &log)

	if err := os.WriteFile(wavPath, wavBytes, 0o644); err != nil {
		metrics.PipelineCallsTotal.WithLabelValues("fatal_error").Inc()
		return errs.New(errs.KindStorage, "persist-scratch", err)
	}

	if sys.AudioCompression.Enabled.Bool() {
		if err := p.transcode(ctx, wavPath, m4aPath, rec, sys); err != nil {
			metrics.PipelineCallsTotal.WithLabelValues("fatal_error").Inc()
			return err
		}
	}

	p.fanOutLegacyToneDetect(ctx, sys, rec, &log)

	p.detectTones(sys, rec)

	p.transcribe(ctx, sys, rec, wavBytes, &log)

	rec.SetPlayLength(callrecord.PlayLengthFromFreqList(rec.FreqList))

	p.writeSidecar(rec, jsonPath, &log)

	p.archiveArtifacts(ctx, sys, rec, wavPath, m4aPath, jsonPath, &log)

	p.writeSidecar(rec, jsonPath, &log)

	if p.index != nil {
		p.index.IndexDocument(ctx, index.Transmissions, rec)
	}

	p.fanOutSinks(ctx, sys, rec, wavPath, m4aPath, &log)

	metrics.PipelineCallsTotal.WithLabelValues("accepted").Inc()
	return nil
}

func (p *Pipeline) isDuplicate(sys config.SystemConfig, rec *callrecord.CallRecord) bool {
	if !sys.DuplicateDetection.Enabled.Bool() {
		return false
	}
	shortName, talkgroup, startTime, callLength, instanceID := dedup.CallRecordKey(rec)
	return p.history.CheckAndInsert(shortName, talkgroup, startTime, callLength, instanceID, sys.DuplicateDetection)
}

func (p *Pipeline) transcode(ctx context.Context, wavPath, m4aPath string, rec *callrecord.CallRecord, sys config.SystemConfig) error {
	t := transcode.New(p.log)
	opts := transcode.Options{
		SampleRate:    sys.AudioCompression.SampleRate,
		Bitrate:       sys.AudioCompression.Bitrate,
		Normalization: sys.AudioCompression.Normalization.Bool(),
		UseLoudnorm:   sys.AudioCompression.UseLoudnorm.Bool(),
		Tags: transcode.Tags{
			Album:   rec.ShortName,
			Artist:  rec.TalkgroupTag,
			Date:    time.Unix(rec.StartTime, 0).UTC(),
			Genre:   "Public Safety",
			Title:   rec.TalkgroupDesc,
			Comment: fmt.Sprintf("Frequency: %v, Frequency Error: %v, Signal: %v, Noise: %v, Call Length: %v seconds",
				rec.Freq, rec.FreqError, rec.Signal, rec.Noise, rec.CallLength),
		},
		Log: p.log,
	}
	if err := t.Transcode(ctx, wavPath, m4aPath, opts); err != nil {
		return errs.Transcode("transcode", err)
	}
	return nil
}

// detectTones runs the inline tone-detection stage (spec §4.2 stage 7).
// Full acoustic detection (matching audio samples against configured tone
// patterns) is out of scope here; whether or not the talkgroup is allowed,
// the three-category slot is populated empty, matching the documented
// no-detection shape. TODO: wire an actual DSP pass once a tone-detection
// library lands in the dependency set.
func (p *Pipeline) detectTones(sys config.SystemConfig, rec *callrecord.CallRecord) {
	rec.SetTones(&callrecord.Tones{
		HiLowTone: []callrecord.ToneEntry{},
		TwoTone:   []callrecord.ToneEntry{},
		LongTone:  []callrecord.ToneEntry{},
	})
}

func (p *Pipeline) transcribe(ctx context.Context, sys config.SystemConfig, rec *callrecord.CallRecord, wavBytes []byte, log *zerolog.Logger) {
	if !sys.Transcribe.Enabled.Bool() || !config.TalkgroupAllowed(sys.Transcribe.AllowedTalkgroups, rec.Talkgroup) {
		rec.SetTranscript(sinks.StubTranscript())
		return
	}
	client := sinks.NewTranscribeClient(sys.Transcribe)
	transcript, err := client.Transcribe(ctx, wavBytes, rec)
	if err != nil {
		log.Error().Err(err).Msg("transcribe request failed")
		rec.SetTranscript(sinks.StubTranscript())
		return
	}
	rec.SetTranscript(transcript)
}

func (p *Pipeline) fanOutLegacyToneDetect(ctx context.Context, sys config.SystemConfig, rec *callrecord.CallRecord, log *zerolog.Logger) {
	for _, cfg := range sys.ToneDetectLegacy {
		if !cfg.Enabled.Bool() {
			continue
		}
		sink := sinks.NewToneDetectLegacySink(cfg)
		runSink(ctx, sink, rec, sinks.Artifacts{ScratchDir: p.scratchDir}, log)
	}
}

func (p *Pipeline) writeSidecar(rec *callrecord.CallRecord, jsonPath string, log *zerolog.Logger) {
	data, err := rec.MarshalSidecar()
	if err != nil {
		log.Error().Err(err).Msg("marshal sidecar failed")
		return
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		log.Error().Err(err).Msg("write sidecar failed")
	}
}

func (p *Pipeline) archiveArtifacts(ctx context.Context, sys config.SystemConfig, rec *callrecord.CallRecord, wavPath, m4aPath, jsonPath string, log *zerolog.Logger) {
	if !sys.Archive.Enabled.Bool() {
		return
	}
	backend, err := archive.New(ctx, sys.Archive, p.log)
	if err != nil || backend == nil {
		if err != nil {
			log.Error().Err(err).Msg("construct archive backend failed")
		}
		return
	}

	partition := archive.Partition(rec.ShortName, time.Unix(rec.StartTime, 0))
	var wavURL, m4aURL string
	for _, ext := range sys.Archive.Extensions {
		switch ext {
		case ".wav":
			if url, ok := uploadIfExists(ctx, backend, wavPath, rec.Filename, partition, log); ok {
				wavURL = url
			}
		case ".m4a":
			dst := strings.TrimSuffix(rec.Filename, ".wav") + ".m4a"
			if url, ok := uploadIfExists(ctx, backend, m4aPath, dst, partition, log); ok {
				m4aURL = url
			}
		case ".json":
			dst := strings.TrimSuffix(rec.Filename, ".wav") + ".json"
			uploadIfExists(ctx, backend, jsonPath, dst, partition, log)
		}
	}
	rec.SetArchiveURLs(wavURL, m4aURL)

	if sys.Archive.ArchiveDays >= 1 {
		root := rec.ShortName
		if _, ok := backend.CleanFiles(ctx, root, sys.Archive.ArchiveDays); !ok {
			log.Warn().Str("backend", backend.Name()).Msg("archive retention sweep failed")
		}
	}
}

func uploadIfExists(ctx context.Context, backend archive.Backend, src, dst, partition string, log *zerolog.Logger) (string, bool) {
	if _, err := os.Stat(src); err != nil {
		return "", false
	}
	url, ok := backend.UploadFile(ctx, src, dst, partition)
	if !ok {
		metrics.ArchiveUploadsTotal.WithLabelValues(backend.Name(), "error").Inc()
		log.Warn().Str("backend", backend.Name()).Str("src", src).Msg("archive upload failed")
	} else {
		metrics.ArchiveUploadsTotal.WithLabelValues(backend.Name(), "ok").Inc()
	}
	return url, ok
}

// fanOutSinks dispatches the configured sinks in fixed order (spec §4.2
// stage 13). Several sinks depend on the transcode stage having produced an
// M4A, or on the archive stage having published one: those are gated here
// rather than inside the sink itself, so a missing prerequisite is a skip
// with a warning rather than a request to an upload endpoint carrying no
// usable audio.
func (p *Pipeline) fanOutSinks(ctx context.Context, sys config.SystemConfig, rec *callrecord.CallRecord, wavPath, m4aPath string, log *zerolog.Logger) {
	m4aExists := fileExists(m4aPath)
	art := sinks.Artifacts{ScratchDir: p.scratchDir, WavPath: wavPath}
	if m4aExists {
		art.M4APath = m4aPath
	}

	if sys.OpenMHZ.Enabled.Bool() {
		if !m4aExists {
			log.Warn().Str("sink", "openmhz").Msg("skipping sink: no m4a produced")
		} else {
			runSink(ctx, sinks.NewOpenMHZSink(sys.OpenMHZ), rec, art, log)
		}
	}
	if sys.BroadcastifyCalls.Enabled.Bool() {
		if !m4aExists {
			log.Warn().Str("sink", "broadcastify").Msg("skipping sink: no m4a produced")
		} else {
			runSink(ctx, sinks.NewBroadcastifySink(sys.BroadcastifyCalls), rec, art, log)
		}
	}
	if sys.ICADPlayer.Enabled.Bool() {
		if rec.AudioM4AURL == "" {
			log.Warn().Str("sink", "icad_player").Msg("skipping sink: no archived m4a url")
		} else {
			runSink(ctx, sinks.NewICADPlayerSink(sys.ICADPlayer, rec.ShortName), rec, art, log)
		}
	}
	for _, rdio := range sys.RdioSystems {
		if !rdio.Enabled.Bool() {
			continue
		}
		if !m4aExists && rec.AudioURL == "" {
			log.Warn().Str("sink", "rdio:"+rdio.SystemLabel).Msg("skipping sink: no m4a or remote-storage url")
			continue
		}
		runSink(ctx, sinks.NewRdioSink(rdio), rec, art, log)
	}
	for _, tp := range sys.TrunkPlayerSystems {
		if !tp.Enabled.Bool() {
			continue
		}
		if !m4aExists {
			log.Warn().Str("sink", "trunk_player").Msg("skipping sink: no m4a produced")
			continue
		}
		runSink(ctx, sinks.NewTrunkPlayerSink(tp), rec, art, log)
	}
	for _, cd := range sys.CloudDetect {
		if cd.Enabled.Bool() {
			runSink(ctx, sinks.NewCloudDetectSink(cd), rec, art, log)
		}
	}
	if sys.ICADAlerting.Enabled.Bool() {
		runSink(ctx, sinks.NewICADAlertingSink(sys.ICADAlerting), rec, art, log)
	}
	for _, wh := range sys.Webhooks {
		if wh.Enabled.Bool() {
			runSink(ctx, sinks.NewWebhookSink(wh), rec, art, log)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runSink(ctx context.Context, sink sinks.Sink, rec *callrecord.CallRecord, art sinks.Artifacts, log *zerolog.Logger) {
	if err := sink.Send(ctx, rec, art); err != nil {
		metrics.SinkInvocationsTotal.WithLabelValues(sink.Name(), "error").Inc()
		log.Error().Err(err).Str("sink", sink.Name()).Msg("sink invocation failed")
		return
	}
	metrics.SinkInvocationsTotal.WithLabelValues(sink.Name(), "ok").Inc()
}

func (p *Pipeline) cleanup(wavPath, m4aPath, jsonPath string, log *zerolog.Logger) {
	for _, path := range []string{wavPath, m4aPath, jsonPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("scratch cleanup failed")
		}
	}
}

// DecodeAudio base64-decodes the call's WAV payload.
func DecodeAudio(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

// RejectDefaultInstance reports whether instanceID is the sentinel default
// value trunk-recorder ships with, meaning the producer was never
// configured (spec §4.1).
func RejectDefaultInstance(instanceID string) bool {
	return instanceID == "" || instanceID == "CHANGEME" || instanceID == "0"
}
