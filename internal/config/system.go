package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// RootDocument is the top-level JSON configuration document (spec §6).
type RootDocument struct {
	LogLevel     string                  `json:"log_level"`
	TempFilePath string                  `json:"temp_file_path"`
	MQTT         MQTTConfig              `json:"mqtt"`
	Elasticsearch ElasticsearchConfig    `json:"elasticsearch"`
	Systems      map[string]SystemConfig `json:"systems"`
}

// MQTTConfig is the "mqtt" configuration block.
type MQTTConfig struct {
	BrokerURL    string `json:"broker_url"`
	ClientID     string `json:"client_id"`
	TopicPrefix  string `json:"topic_prefix"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	CACert       string `json:"ca_cert"`
	ClientCert   string `json:"client_cert"`
	ClientKey    string `json:"client_key"`
}

// ElasticsearchConfig is the "elasticsearch" configuration block.
type ElasticsearchConfig struct {
	URLs        []string `json:"urls"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	IndexPrefix string   `json:"index_prefix"`
}

// DuplicateDetectionConfig is "duplicate_transmission_detection".
type DuplicateDetectionConfig struct {
	Enabled                  FlexBool  `json:"enabled"`
	StartDifferenceThreshold float64   `json:"start_difference_threshold"`
	LengthThreshold          float64   `json:"length_threshold"`
	CheckSameInstance        FlexBool  `json:"check_same_instance"`
	SimulcastTalkgroups      [][]int   `json:"simulcast_talkgroups"`
}

// ArchiveConfig is the "archive" configuration block.
type ArchiveConfig struct {
	Enabled     FlexBool            `json:"enabled"`
	Backend     string              `json:"backend"` // "local", "scp", "s3", "gcs"
	ArchiveDays int                 `json:"archive_days"`
	Extensions  []string            `json:"extensions"`
	Local       LocalArchiveConfig  `json:"local"`
	SCP         SCPArchiveConfig    `json:"scp"`
	S3          S3ArchiveConfig     `json:"s3"`
	GCS         GCSArchiveConfig    `json:"gcs"`
}

// LocalArchiveConfig configures the LocalFS backend.
type LocalArchiveConfig struct {
	ArchiveRoot string `json:"archive_root"`
	BaseURL     string `json:"base_url"`
}

// SCPArchiveConfig configures the SCP/SFTP backend.
type SCPArchiveConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	PrivateKey  string `json:"private_key"`
	ArchiveRoot string `json:"archive_root"`
	BaseURL     string `json:"base_url"`
}

// S3ArchiveConfig configures the AWS S3 backend.
type S3ArchiveConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	ArchiveRoot     string `json:"archive_root"`
}

// GCSArchiveConfig configures the Google Cloud Storage backend.
type GCSArchiveConfig struct {
	Bucket             string `json:"bucket"`
	CredentialsFile    string `json:"credentials_file"`
	ArchiveRoot        string `json:"archive_root"`
}

// AudioCompressionConfig is the "audio_compression" (transcode) block.
type AudioCompressionConfig struct {
	Enabled        FlexBool `json:"enabled"`
	SampleRate     int      `json:"sample_rate"`
	Bitrate        string   `json:"bitrate"`
	Normalization  FlexBool `json:"normalization"`
	UseLoudnorm    FlexBool `json:"use_loudnorm"`
}

// ToneDetectLegacyConfig is one entry of "icad_tone_detect_legacy[]".
type ToneDetectLegacyConfig struct {
	Enabled FlexBool `json:"enabled"`
	URL     string   `json:"url"`
}

// CloudDetectConfig is one entry of "icad_cloud_detect[]".
type CloudDetectConfig struct {
	Enabled FlexBool `json:"enabled"`
	URL     string   `json:"url"`
	APIKey  string   `json:"api_key"`
}

// ToneDetectionConfig is the "tone_detection" block.
type ToneDetectionConfig struct {
	Enabled           FlexBool `json:"enabled"`
	AllowedTalkgroups []string `json:"allowed_talkgroups"`
}

// TranscribeConfig is the "transcribe" block.
type TranscribeConfig struct {
	Enabled            FlexBool        `json:"enabled"`
	URL                string          `json:"url"`
	AllowedTalkgroups  []string        `json:"allowed_talkgroups"`
	WhisperConfigData  json.RawMessage `json:"whisper_config_data,omitempty"`
}

// OpenMHZConfig is the "openmhz" block.
type OpenMHZConfig struct {
	Enabled   FlexBool `json:"enabled"`
	URL       string   `json:"url"`
	APIKey    string   `json:"api_key"`
	ShortName string   `json:"short_name"`
}

// BroadcastifyConfig is the "broadcastify_calls" block.
type BroadcastifyConfig struct {
	Enabled  FlexBool `json:"enabled"`
	URL      string   `json:"url"`
	SystemID string   `json:"system_id"`
	APIKey   string   `json:"api_key"`
}

// ICADPlayerConfig is the "icad_player" block.
type ICADPlayerConfig struct {
	Enabled           FlexBool `json:"enabled"`
	URL               string   `json:"url"`
	APIKey            string   `json:"api_key"`
	AllowedTalkgroups []string `json:"allowed_talkgroups"`
}

// RdioSystemConfig is one entry of "rdio_systems[]".
type RdioSystemConfig struct {
	Enabled        FlexBool `json:"enabled"`
	URL            string   `json:"url"`
	Key            string   `json:"key"`
	System         string   `json:"system"`
	SystemLabel    string   `json:"system_label"`
	RemoteStorage  FlexBool `json:"remote_storage"`
}

// TrunkPlayerConfig is one entry of "trunk_player_systems[]".
type TrunkPlayerConfig struct {
	Enabled   FlexBool `json:"enabled"`
	URL       string   `json:"url"`
	AuthToken string   `json:"auth_token"`
}

// ICADAlertingConfig is the "icad_alerting" block.
type ICADAlertingConfig struct {
	Enabled           FlexBool `json:"enabled"`
	URL               string   `json:"url"`
	APIKey            string   `json:"api_key"`
	AllowedTalkgroups []string `json:"allowed_talkgroups"`
}

// WebhookConfig is one entry of "webhooks[]".
type WebhookConfig struct {
	Enabled           FlexBool          `json:"enabled"`
	URL               string            `json:"url"`
	Headers           map[string]string `json:"headers"`
	Body              json.RawMessage   `json:"body"`
	AllowedTalkgroups []string          `json:"allowed_talkgroups"`
}

// LiquidsoapConfig is the optional "liquidsoap" block (supplemented feature,
// see SPEC_FULL.md §10).
type LiquidsoapConfig struct {
	Enabled    FlexBool `json:"enabled"`
	StagingDir string   `json:"staging_dir"`
	Delay      float64  `json:"delay_seconds"`
}

// TalkgroupConfig is one entry of a system's "talkgroup_config", looked up
// by decimal talkgroup string, falling back to "*".
type TalkgroupConfig struct {
	AlphaTag    string `json:"alpha_tag"`
	Description string `json:"description"`
	Group       string `json:"group"`
	Tag         string `json:"tag"`
}

// SystemConfig is one entry of the top-level "systems" map, keyed by short_name.
type SystemConfig struct {
	ShortName          string                     `json:"-"`
	DuplicateDetection DuplicateDetectionConfig   `json:"duplicate_transmission_detection"`
	Archive            ArchiveConfig              `json:"archive"`
	AudioCompression   AudioCompressionConfig     `json:"audio_compression"`
	ToneDetectLegacy   []ToneDetectLegacyConfig   `json:"icad_tone_detect_legacy"`
	ToneDetection      ToneDetectionConfig        `json:"tone_detection"`
	Transcribe         TranscribeConfig           `json:"transcribe"`
	OpenMHZ            OpenMHZConfig              `json:"openmhz"`
	BroadcastifyCalls  BroadcastifyConfig         `json:"broadcastify_calls"`
	ICADPlayer         ICADPlayerConfig           `json:"icad_player"`
	CloudDetect        []CloudDetectConfig        `json:"icad_cloud_detect"`
	RdioSystems        []RdioSystemConfig         `json:"rdio_systems"`
	TrunkPlayerSystems []TrunkPlayerConfig        `json:"trunk_player_systems"`
	ICADAlerting       ICADAlertingConfig         `json:"icad_alerting"`
	Webhooks           []WebhookConfig            `json:"webhooks"`
	TalkgroupConfig    map[string]TalkgroupConfig `json:"talkgroup_config"`
	Liquidsoap         *LiquidsoapConfig          `json:"liquidsoap,omitempty"`
}

// Talkgroup looks up a talkgroup's descriptive config by decimal id,
// falling back to the "*" entry, per spec §3.
func (s SystemConfig) Talkgroup(tg int) (TalkgroupConfig, bool) {
	key := fmt.Sprintf("%d", tg)
	if tc, ok := s.TalkgroupConfig[key]; ok {
		return tc, true
	}
	if tc, ok := s.TalkgroupConfig["*"]; ok {
		return tc, true
	}
	return TalkgroupConfig{}, false
}

// LoadSystems reads and decodes the JSON domain configuration document.
func LoadSystems(path string) (*RootDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("read config file", err)
	}
	var doc RootDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewConfigError("parse config file", err)
	}
	for name, sys := range doc.Systems {
		sys.ShortName = name
		doc.Systems[name] = sys
	}
	return &doc, nil
}

// System looks up a system's configuration by short_name. Per spec §3,
// an unknown short_name is not an error here — callers (the pipeline guard
// stage) decide to drop the record with a warning.
func (r *RootDocument) System(shortName string) (SystemConfig, bool) {
	sc, ok := r.Systems[shortName]
	return sc, ok
}

// TalkgroupAllowed implements the shared allow-list gate used by every
// gated sink (spec §4.2's talkgroup allow-list rule), generalized from the
// original's per-sink duplicated check (SPEC_FULL.md §10).
func TalkgroupAllowed(allowed []string, talkgroup int) bool {
	if len(allowed) == 0 {
		return false
	}
	tgStr := fmt.Sprintf("%d", talkgroup)
	for _, a := range allowed {
		if a == "*" || a == tgStr {
			return true
		}
	}
	return false
}
