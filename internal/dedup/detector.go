// Package dedup implements the duplicate-suppression window across
// simulcast talkgroups (spec §4.3).
package dedup

import (
	"sync"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

const windowSize = 15

type key struct {
	shortName string
	talkgroup int
}

// entry is the minimal record kept in a window: enough to run the
// duplicate comparison without retaining the whole CallRecord.
type entry struct {
	startTime  float64
	callLength float64
	instanceID string
}

// MessageHistory is the shared, mutex-guarded duplicate-detection window.
// Check-and-insert is one critical section, matching spec §4.3/§5.
type MessageHistory struct {
	mu      sync.Mutex
	windows map[key][]entry
}

// NewMessageHistory creates an empty history.
func NewMessageHistory() *MessageHistory {
	return &MessageHistory{windows: make(map[key][]entry)}
}

// CheckAndInsert reports whether rec duplicates an existing accepted call in
// its (or its simulcast group's) window, per the thresholds in cfg. If not a
// duplicate, rec is inserted into every checked talkgroup's window.
func (h *MessageHistory) CheckAndInsert(shortName string, talkgroup int, startTime, callLength float64, instanceID string, cfg config.DuplicateDetectionConfig) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	talkgroups := simulcastGroup(cfg.SimulcastTalkgroups, talkgroup)

	for _, tg := range talkgroups {
		k := key{shortName: shortName, talkgroup: tg}
		for _, e := range h.windows[k] {
			if isDuplicate(e, startTime, callLength, instanceID, cfg) {
				return true
			}
		}
	}

	newEntry := entry{startTime: startTime, callLength: callLength, instanceID: instanceID}
	for _, tg := range talkgroups {
		k := key{shortName: shortName, talkgroup: tg}
		w := append(h.windows[k], newEntry)
		if len(w) > windowSize {
			w = w[len(w)-windowSize:]
		}
		h.windows[k] = w
	}
	return false
}

// isDuplicate implements the three-clause comparison from spec §4.3.
// Scanned oldest-to-newest by the caller, first match wins.
func isDuplicate(e entry, startTime, callLength float64, instanceID string, cfg config.DuplicateDetectionConfig) bool {
	if absDiff(startTime, e.startTime) > cfg.StartDifferenceThreshold {
		return false
	}
	if absDiff(callLength, e.callLength) > cfg.LengthThreshold {
		return false
	}
	if !cfg.CheckSameInstance.Bool() && instanceID == e.instanceID {
		return false
	}
	return true
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// simulcastGroup returns every talkgroup to check: the configured group
// containing tg if one exists, otherwise just tg itself.
func simulcastGroup(groups [][]int, tg int) []int {
	for _, g := range groups {
		for _, member := range g {
			if member == tg {
				return g
			}
		}
	}
	return []int{tg}
}

// CallRecordKey extracts the dedup-relevant fields from a CallRecord,
// avoiding a hard dependency from this package back onto the pipeline.
func CallRecordKey(rec *callrecord.CallRecord) (shortName string, talkgroup int, startTime, callLength float64, instanceID string) {
	return rec.ShortName, rec.Talkgroup, float64(rec.StartTime), float64(rec.CallLength), rec.InstanceID
}
