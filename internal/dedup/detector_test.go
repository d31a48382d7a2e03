package dedup

import (
	"testing"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

func thresholdCfg() config.DuplicateDetectionConfig {
	return config.DuplicateDetectionConfig{
		Enabled:                  true,
		StartDifferenceThreshold: 1.0,
		LengthThreshold:          0.5,
		CheckSameInstance:        false,
	}
}

// TestDuplicateRejected covers invariant 2: within threshold, different
// instance, same (system, talkgroup) -> rejected as duplicate.
func TestDuplicateRejected(t *testing.T) {
	h := NewMessageHistory()
	cfg := thresholdCfg()

	if dup := h.CheckAndInsert("sys1", 100, 1700000000, 5.0, "inst-a", cfg); dup {
		t.Fatal("first call should not be a duplicate")
	}
	if dup := h.CheckAndInsert("sys1", 100, 1700000000.5, 5.1, "inst-b", cfg); !dup {
		t.Fatal("second call within thresholds from a different instance should be a duplicate")
	}
}

func TestSameInstanceNotDuplicateByDefault(t *testing.T) {
	h := NewMessageHistory()
	cfg := thresholdCfg()

	h.CheckAndInsert("sys1", 100, 1700000000, 5.0, "inst-a", cfg)
	if dup := h.CheckAndInsert("sys1", 100, 1700000000.2, 5.0, "inst-a", cfg); dup {
		t.Fatal("same instance should not be treated as duplicate when check_same_instance is false")
	}
}

func TestCheckSameInstanceTrue(t *testing.T) {
	h := NewMessageHistory()
	cfg := thresholdCfg()
	cfg.CheckSameInstance = true

	h.CheckAndInsert("sys1", 100, 1700000000, 5.0, "inst-a", cfg)
	if dup := h.CheckAndInsert("sys1", 100, 1700000000.2, 5.0, "inst-a", cfg); !dup {
		t.Fatal("same instance should be a duplicate when check_same_instance is true")
	}
}

func TestOutsideThresholdNotDuplicate(t *testing.T) {
	h := NewMessageHistory()
	cfg := thresholdCfg()

	h.CheckAndInsert("sys1", 100, 1700000000, 5.0, "inst-a", cfg)
	if dup := h.CheckAndInsert("sys1", 100, 1700000010, 5.0, "inst-b", cfg); dup {
		t.Fatal("call outside start_difference_threshold should not be a duplicate")
	}
}

func TestSimulcastGroupChecked(t *testing.T) {
	h := NewMessageHistory()
	cfg := thresholdCfg()
	cfg.SimulcastTalkgroups = [][]int{{100, 200, 300}}

	h.CheckAndInsert("sys1", 100, 1700000000, 5.0, "inst-a", cfg)
	if dup := h.CheckAndInsert("sys1", 200, 1700000000.1, 5.0, "inst-b", cfg); !dup {
		t.Fatal("a simulcast sibling talkgroup should be checked against the same window")
	}
}

func TestWindowTruncatedTo15(t *testing.T) {
	h := NewMessageHistory()
	cfg := thresholdCfg()
	cfg.StartDifferenceThreshold = 0
	cfg.LengthThreshold = 0

	for i := 0; i < 20; i++ {
		h.CheckAndInsert("sys1", 100, float64(1700000000+i*100), 5.0, "inst", cfg)
	}
	k := key{shortName: "sys1", talkgroup: 100}
	if got := len(h.windows[k]); got != windowSize {
		t.Fatalf("expected window truncated to %d, got %d", windowSize, got)
	}
}
