package mqttclient

import "testing"

func TestParseTopics(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"#"}},
		{"feeds/audio", []string{"feeds/audio"}},
		{"feeds/audio, feeds/rates ,status/calls_active", []string{"feeds/audio", "feeds/rates", "status/calls_active"}},
	}
	for _, c := range cases {
		got := parseTopics(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("parseTopics(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("parseTopics(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestTLSOptionsComplete(t *testing.T) {
	if (TLSOptions{}).complete() {
		t.Fatal("empty TLSOptions should not be complete")
	}
	if (TLSOptions{CACert: "a"}).complete() {
		t.Fatal("partial TLSOptions should not be complete")
	}
	full := TLSOptions{CACert: "a", ClientCert: "b", ClientKey: "c"}
	if !full.complete() {
		t.Fatal("fully populated TLSOptions should be complete")
	}
}
