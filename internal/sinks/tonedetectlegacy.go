package sinks

import (
	"context"
	"strconv"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// ToneDetectLegacySink uploads the WAV as multipart/form-data alongside the
// call's fields as plain form values, grounded on the original
// upload_to_icad_legacy.
type ToneDetectLegacySink struct {
	cfg config.ToneDetectLegacyConfig
}

func NewToneDetectLegacySink(cfg config.ToneDetectLegacyConfig) *ToneDetectLegacySink {
	return &ToneDetectLegacySink{cfg: cfg}
}

func (s *ToneDetectLegacySink) Name() string { return "icad_tone_detect_legacy" }

func (s *ToneDetectLegacySink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	fields := []multipartField{
		{"short_name", rec.ShortName},
		{"talkgroup", strconv.Itoa(rec.Talkgroup)},
		{"talkgroup_tag", rec.TalkgroupTag},
		{"talkgroup_description", rec.TalkgroupDesc},
	}
	files := []multipartFile{{field: "file", filename: rec.Filename, path: wavPath(art, rec)}}
	return postMultipart(ctx, s.cfg.URL, fields, files, nil)
}
