// Package template implements the token expansion engine used to build
// webhook bodies and headers from call metadata (spec §4.7). This is one
// of the few hand-rolled components: expanding a dot-path token inside an
// operator-controlled JSON template is not a job for text/template or
// html/template, both of which assume a different token syntax and, in
// html/template's case, HTML-escape output that must stay raw JSON.
package template

import (
	"strconv"
	"strings"
	"time"
)

// Render walks a parsed JSON tree (map[string]any / []any / string / ...,
// as produced by encoding/json.Unmarshal into an any) and returns a copy
// with every `{dot.path}` token in every string replaced by its looked-up
// value, stringified. Non-string leaves are copied through unchanged.
func Render(tree any, data map[string]any) any {
	derived := withDerivedTokens(data)
	return render(tree, derived)
}

// RenderString expands tokens in a single string against data, applying
// the same derived/special tokens as Render.
func RenderString(s string, data map[string]any) string {
	derived := withDerivedTokens(data)
	return expand(s, derived)
}

func render(node any, data map[string]any) any {
	switch v := node.(type) {
	case string:
		return expand(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[expand(k, data)] = render(val, data)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = render(val, data)
		}
		return out
	default:
		return v
	}
}

// expand scans s left to right for `{path}` tokens and substitutes the
// looked-up, stringified value; unresolvable paths render as "". A brace
// pair whose content is empty or contains whitespace, quotes, colons,
// commas, brackets or another '{' is not a token: its '{' is copied through
// literally, so JSON text inside a string template is left intact.
func expand(s string, data map[string]any) string {
	if !strings.Contains(s, "{") {
		return s
	}
	var b strings.Builder
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+open])
		rest := s[i+open+1:]
		close := strings.IndexByte(rest, '}')
		if close < 0 {
			b.WriteString(s[i+open:])
			break
		}
		path := rest[:close]
		if path == "" || strings.ContainsAny(path, " \t\r\n\"':,{[]") {
			b.WriteByte('{')
			i = i + open + 1
			continue
		}
		b.WriteString(stringify(lookup(path, data)))
		i = i + open + 1 + close + 1
	}
	return b.String()
}

// lookup resolves a dot-separated path against data, descending through
// nested maps and special-casing the multi-value tokens documented in
// spec §4.7.
func lookup(path string, data map[string]any) any {
	switch path {
	case "transcript.segments_text":
		return segmentsText(data)
	case "transcript.addresses_text":
		return addressesText(data)
	case "tones.report_text":
		return tonesReportText(data)
	case "tones.report_html":
		return tonesReportHTML(data)
	}

	parts := strings.Split(path, ".")
	var cur any = data
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func withDerivedTokens(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	if st, ok := out["start_time"]; ok {
		epoch := toFloat(st)
		out["timestamp_epoch"] = epoch
		out["timestamp"] = time.Unix(int64(epoch), 0).UTC().Format("15:04 Jan 2 2006 MST")
	}
	return out
}

func segmentsText(data map[string]any) string {
	segs := listAt(data, "transcript", "segments")
	var lines []string
	for _, seg := range segs {
		m, ok := seg.(map[string]any)
		if !ok {
			continue
		}
		if txt, ok := m["text"].(string); ok {
			lines = append(lines, txt)
		}
	}
	return strings.Join(lines, "\n")
}

func addressesText(data map[string]any) string {
	tr, ok := data["transcript"].(map[string]any)
	if !ok {
		return ""
	}
	addrs, ok := tr["addresses"].([]any)
	if !ok {
		return ""
	}
	var parts []string
	for _, a := range addrs {
		parts = append(parts, stringify(a))
	}
	return strings.Join(parts, ", ")
}

// toneCategories are the three enrichment-slot keys under "tones", in the
// order they should appear in a rendered report.
var toneCategories = []string{"hi_low_tone", "two_tone", "long_tone"}

func allTones(data map[string]any) []any {
	var all []any
	for _, cat := range toneCategories {
		all = append(all, listAt(data, "tones", cat)...)
	}
	return all
}

func tonesReportText(data map[string]any) string {
	var lines []string
	for _, e := range allTones(data) {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		lines = append(lines, stringify(m["type"])+" "+stringify(m["frequencies"]))
	}
	return strings.Join(lines, "\n")
}

func tonesReportHTML(data map[string]any) string {
	var lines []string
	for _, e := range allTones(data) {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		lines = append(lines, "<li>"+stringify(m["type"])+" "+stringify(m["frequencies"])+"</li>")
	}
	if len(lines) == 0 {
		return ""
	}
	return "<ul>" + strings.Join(lines, "") + "</ul>"
}

func listAt(data map[string]any, outer, inner string) []any {
	o, ok := data[outer].(map[string]any)
	if !ok {
		return nil
	}
	l, ok := o[inner].([]any)
	if !ok {
		return nil
	}
	return l
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}
