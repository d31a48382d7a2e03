package template

import "testing"

func TestRenderStringNoTokensIsIdempotent(t *testing.T) {
	data := map[string]any{"talkgroup": float64(1234)}
	s := `{"plain": "no tokens here"}`
	got := RenderString(s, data)
	if got != s {
		t.Fatalf("expected idempotent render, got %q", got)
	}
}

func TestRenderStringResolvesDotPath(t *testing.T) {
	data := map[string]any{
		"talkgroup": float64(1234),
		"system":    map[string]any{"short_name": "metro"},
	}
	got := RenderString("tg {talkgroup} on {system.short_name}", data)
	want := "tg 1234 on metro"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRenderStringMissingPathRendersEmpty(t *testing.T) {
	got := RenderString("value={missing.path}", map[string]any{})
	if got != "value=" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderStringDerivedTimestamp(t *testing.T) {
	data := map[string]any{"start_time": float64(1700000000)}
	got := RenderString("{timestamp_epoch}", data)
	if got != "1.7e+09" && got != "1700000000" {
		t.Fatalf("unexpected timestamp_epoch rendering: %q", got)
	}
}

func TestRenderMapRecursesIntoValues(t *testing.T) {
	tree := map[string]any{
		"nested": map[string]any{"v": "{talkgroup}"},
		"list":   []any{"{talkgroup}", "literal"},
	}
	out := Render(tree, map[string]any{"talkgroup": float64(42)})
	m := out.(map[string]any)
	nested := m["nested"].(map[string]any)
	if nested["v"] != "42" {
		t.Fatalf("got %v", nested["v"])
	}
	list := m["list"].([]any)
	if list[0] != "42" || list[1] != "literal" {
		t.Fatalf("got %v", list)
	}
}

func TestSegmentsTextJoinsNewlines(t *testing.T) {
	data := map[string]any{
		"transcript": map[string]any{
			"segments": []any{
				map[string]any{"text": "first"},
				map[string]any{"text": "second"},
			},
		},
	}
	got := RenderString("{transcript.segments_text}", data)
	if got != "first\nsecond" {
		t.Fatalf("got %q", got)
	}
}
