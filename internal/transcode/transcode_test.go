package transcode

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTagArgs(t *testing.T) {
	tags := Tags{
		Album:   "sys1",
		Artist:  "100",
		Date:    time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
		Genre:   "Scanner Traffic",
		Title:   "Dispatch",
		Comment: "freq=460.1 signal=-80 noise=-100 length=5.0",
	}
	args := tagArgs(tags)
	joined := strings.Join(args, " ")
	for _, want := range []string{"album=sys1", "artist=100", "date=2023-11-14T22:13:20Z", "genre=Scanner Traffic", "title=Dispatch"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("tagArgs output %q missing %q", joined, want)
		}
	}
}

func TestTagArgsOmitsEmpty(t *testing.T) {
	args := tagArgs(Tags{})
	if len(args) != 0 {
		t.Fatalf("expected no metadata args for empty tags, got %v", args)
	}
}

func TestLoudnormJSONPattern(t *testing.T) {
	sample := `[Parsed_loudnorm_0 @ 0x1234]
{
	"input_i" : "-23.00",
	"input_tp" : "-5.00",
	"input_lra" : "7.00",
	"input_thresh" : "-33.00",
	"output_i" : "-16.00",
	"output_tp" : "-1.50",
	"output_lra" : "11.00",
	"output_thresh" : "-26.00",
	"normalization_type" : "dynamic",
	"target_offset" : "0.00"
}`
	block := loudnormJSONPattern.Find([]byte(sample))
	if block == nil {
		t.Fatal("expected to find measurement JSON block")
	}
	var m loudnormMeasurement
	if err := json.Unmarshal(block, &m); err != nil {
		t.Fatalf("unmarshal measurement: %v", err)
	}
	if m.InputI != "-23.00" {
		t.Fatalf("expected input_i -23.00, got %q", m.InputI)
	}
}
