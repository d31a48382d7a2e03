package consumer

import "testing"

func TestParseSuffixRecognizedTopics(t *testing.T) {
	cases := map[string]string{
		"/feeds/audio":         "audio",
		"feeds/audio":          "audio",
		"/feeds/rates":         "rates",
		"/feeds/recorders":     "recorders",
		"/status/calls_active": "calls_active",
		"/feeds/call_end":      "call_end",
		"/units/call":          "unit_call",
		"/units/end":           "unit_end",
	}
	for suffix, want := range cases {
		if got := ParseSuffix(suffix).Kind; got != want {
			t.Errorf("ParseSuffix(%q) = %q, want %q", suffix, got, want)
		}
	}
}

func TestParseSuffixUnknownReturnsEmptyKind(t *testing.T) {
	if got := ParseSuffix("/feeds/bogus").Kind; got != "" {
		t.Errorf("expected empty kind for unknown suffix, got %q", got)
	}
}
