package sinks

import (
	"context"
	"strings"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/archive"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// TrunkPlayerSink notifies a trunk-player instance of a new recording's
// archive location, grounded on the original upload_to_trunk_player.
type TrunkPlayerSink struct {
	cfg config.TrunkPlayerConfig
}

func NewTrunkPlayerSink(cfg config.TrunkPlayerConfig) *TrunkPlayerSink {
	return &TrunkPlayerSink{cfg: cfg}
}

func (s *TrunkPlayerSink) Name() string { return "trunk_player" }

type trunkPlayerBody struct {
	AuthToken string `json:"auth_token"`
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	M4A       bool   `json:"m4a"`
}

func (s *TrunkPlayerSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	callDate := time.Unix(rec.StartTime, 0).UTC()
	folder := archive.Partition(rec.ShortName, callDate) + "/"
	fileName := strings.TrimSuffix(rec.Filename, ".wav")

	body := trunkPlayerBody{
		AuthToken: s.cfg.AuthToken,
		FilePath:  folder,
		FileName:  fileName,
		M4A:       true,
	}
	return postJSON(ctx, s.cfg.URL, body, nil)
}
