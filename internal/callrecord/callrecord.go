// Package callrecord defines the in-memory representation of a radio call
// as it flows through the pipeline, plus the JSON wire shapes trunk-recorder
// publishes on the audio topic.
package callrecord

import (
	"encoding/json"
	"time"
)

// FreqEntry is one frequency-hop entry from trunk-recorder's freqList.
type FreqEntry struct {
	Freq       float64 `json:"freq"`
	Time       int64   `json:"time"`
	Pos        float64 `json:"pos"`
	Len        float64 `json:"len"`
	ErrorCount int     `json:"error_count"`
	SpikeCount int     `json:"spike_count"`
}

// SrcEntry is one transmission-source entry from trunk-recorder's srcList.
type SrcEntry struct {
	Src          int     `json:"src"`
	Time         int64   `json:"time"`
	Pos          float64 `json:"pos"`
	Emergency    int     `json:"emergency"`
	SignalSystem string  `json:"signal_system"`
	Tag          string  `json:"tag"`
}

// AudioMetadata is the "metadata" sub-object of an audio message's call field.
type AudioMetadata struct {
	Freq              float64     `json:"freq"`
	FreqError         int         `json:"freq_error"`
	Signal            float64     `json:"signal"`
	Noise             float64     `json:"noise"`
	SourceNum         int         `json:"source_num"`
	RecorderNum       int         `json:"recorder_num"`
	TDMASlot          int         `json:"tdma_slot"`
	Phase2TDMA        int         `json:"phase2_tdma"`
	StartTime         int64       `json:"start_time"`
	StopTime          int64       `json:"stop_time"`
	Emergency         int         `json:"emergency"`
	Priority          int         `json:"priority"`
	Mode              int         `json:"mode"`
	Duplex            int         `json:"duplex"`
	Encrypted         int         `json:"encrypted"`
	CallLength        int         `json:"call_length"`
	Talkgroup         int         `json:"talkgroup"`
	TalkgroupTag      string      `json:"talkgroup_tag"`
	TalkgroupDesc     string      `json:"talkgroup_description"`
	TalkgroupGroupTag string      `json:"talkgroup_group_tag"`
	TalkgroupGroup    string      `json:"talkgroup_group"`
	TalkgroupPatches  string      `json:"talkgroup_patches"`
	Patches           []int       `json:"patches"`
	AudioType         string      `json:"audio_type"`
	ShortName         string      `json:"short_name"`
	FreqList          []FreqEntry `json:"freqList"`
	SrcList           []SrcEntry  `json:"srcList"`
	Filename          string      `json:"filename"`
}

// AudioCallData is the "call" field of a feeds/audio message.
type AudioCallData struct {
	AudioWavBase64 string        `json:"audio_wav_base64"`
	AudioM4ABase64 string        `json:"audio_m4a_base64"`
	Metadata       AudioMetadata `json:"metadata"`
}

// AudioEnvelope is the full feeds/audio payload.
type AudioEnvelope struct {
	Type       string        `json:"type"`
	Timestamp  int64         `json:"timestamp"`
	InstanceID string        `json:"instance_id"`
	Call       AudioCallData `json:"call"`
}

// TranscriptSegment is one attributed segment of a call's transcript.
type TranscriptSegment struct {
	Src   int     `json:"src"`
	Tag   string  `json:"tag"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the enrichment slot populated by the transcribe pipeline
// stage, matching the documented stub/response shape (spec §4.2 stage 8).
type Transcript struct {
	Transcript         string              `json:"transcript"`
	Segments           []TranscriptSegment `json:"segments"`
	ProcessTimeSeconds float64             `json:"process_time_seconds"`
	Addresses          string              `json:"addresses"`
}

// ToneEntry is one detected tone within a tone category.
type ToneEntry struct {
	Type        string    `json:"type"`
	Frequencies []float64 `json:"frequencies"`
	MatchedAt   time.Duration `json:"-"`
}

// Tones is the enrichment slot populated by the inline tone-detection stage,
// matching the documented empty-categories shape (spec §4.2 stage 7).
type Tones struct {
	HiLowTone []ToneEntry `json:"hi_low_tone"`
	TwoTone   []ToneEntry `json:"two_tone"`
	LongTone  []ToneEntry `json:"long_tone"`
}

// CallRecord is the append-only, enrichment-accumulating record of a single
// radio transmission as it is carried through the pipeline. Fields are only
// ever added to via the Set* helpers below; nothing clears a populated slot.
type CallRecord struct {
	InstanceID       string      `json:"instance_id"`
	ReceivedAt       time.Time   `json:"received_at"`
	ShortName        string      `json:"short_name"`
	Talkgroup        int         `json:"talkgroup"`
	TalkgroupTag     string      `json:"talkgroup_tag"`
	TalkgroupDesc    string      `json:"talkgroup_description"`
	TalkgroupGroup   string      `json:"talkgroup_group"`
	TalkgroupPatches string      `json:"talkgroup_patches"`
	Emergency        bool        `json:"emergency"`
	Encrypted        bool        `json:"encrypted"`
	Freq             float64     `json:"freq"`
	FreqError        int         `json:"freq_error"`
	Signal           float64     `json:"signal"`
	Noise            float64     `json:"noise"`
	Patches          []int       `json:"patches"`
	FreqList         []FreqEntry `json:"freqList"`
	SrcList          []SrcEntry  `json:"srcList"`
	StartTime        int64       `json:"start_time"`
	StopTime         int64       `json:"stop_time"`
	CallLength       int         `json:"call_length"`
	AudioType        string      `json:"audio_type"`
	Filename         string      `json:"filename"`

	// Enrichment slots, populated progressively by pipeline stages.
	PlayLength  float64     `json:"play_length,omitempty"`
	Transcript  *Transcript `json:"transcript,omitempty"`
	Tones       *Tones      `json:"tones,omitempty"`
	AudioWavURL string      `json:"audio_wav_url,omitempty"`
	AudioM4AURL string      `json:"audio_m4a_url,omitempty"`
	AudioURL    string      `json:"audio_url,omitempty"`
}

// New builds a CallRecord from a decoded audio envelope. Enrichment slots
// start empty; decoded audio bytes are returned separately since they are
// transient pipeline state, not part of the durable record.
func New(env AudioEnvelope, receivedAt time.Time) *CallRecord {
	m := env.Call.Metadata
	return &CallRecord{
		InstanceID:       env.InstanceID,
		ReceivedAt:       receivedAt,
		ShortName:        m.ShortName,
		Talkgroup:        m.Talkgroup,
		TalkgroupTag:     m.TalkgroupTag,
		TalkgroupDesc:    m.TalkgroupDesc,
		TalkgroupGroup:   m.TalkgroupGroup,
		TalkgroupPatches: m.TalkgroupPatches,
		Patches:          m.Patches,
		Emergency:        m.Emergency != 0,
		Encrypted:        m.Encrypted != 0,
		Freq:             m.Freq,
		FreqError:        m.FreqError,
		Signal:           m.Signal,
		Noise:            m.Noise,
		FreqList:         m.FreqList,
		SrcList:          m.SrcList,
		StartTime:        m.StartTime,
		StopTime:         m.StopTime,
		CallLength:       m.CallLength,
		AudioType:        m.AudioType,
		Filename:         m.Filename,
	}
}

// SetPlayLength sets the computed audio duration once, from the sum of
// freqList entry lengths (the pipeline's play-length invariant).
func (c *CallRecord) SetPlayLength(seconds float64) {
	c.PlayLength = seconds
}

// SetTranscript attaches transcription output. Never called more than once
// per record in normal pipeline flow.
func (c *CallRecord) SetTranscript(t *Transcript) {
	c.Transcript = t
}

// SetTones attaches inline tone-detection results.
func (c *CallRecord) SetTones(t *Tones) {
	c.Tones = t
}

// SetArchiveURLs records archive upload results. audio_url mirrors the M4A
// URL when present, falling back to the WAV URL otherwise, per the archive
// subsystem's URL-precedence rule.
func (c *CallRecord) SetArchiveURLs(wavURL, m4aURL string) {
	c.AudioWavURL = wavURL
	c.AudioM4AURL = m4aURL
	if m4aURL != "" {
		c.AudioURL = m4aURL
	} else {
		c.AudioURL = wavURL
	}
}

// PlayLengthFromFreqList sums freqList[].len, the play-length invariant from
// spec's testable properties.
func PlayLengthFromFreqList(entries []FreqEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Len
	}
	return total
}

// MarshalSidecar renders the record as the JSON sidecar file written
// alongside the scratch audio files and rewritten after each enrichment stage.
func (c *CallRecord) MarshalSidecar() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
