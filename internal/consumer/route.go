package consumer

import "strings"

// Route describes a parsed MQTT topic suffix (the portion after the
// configured topic prefix), grounded on the teacher's ParseTopic.
type Route struct {
	Kind string // "audio", "rates", "recorders", "calls_active", "call_end", "unit_call", "unit_end", ""
}

// ParseSuffix maps a trunk-recorder topic suffix to a Route (spec §4.1).
// An empty Kind means the suffix is unrecognized and the message should be
// logged and dropped.
func ParseSuffix(suffix string) Route {
	switch strings.TrimPrefix(suffix, "/") {
	case "feeds/audio":
		return Route{Kind: "audio"}
	case "feeds/rates":
		return Route{Kind: "rates"}
	case "feeds/recorders":
		return Route{Kind: "recorders"}
	case "status/calls_active":
		return Route{Kind: "calls_active"}
	case "feeds/call_end":
		return Route{Kind: "call_end"}
	case "units/call":
		return Route{Kind: "unit_call"}
	case "units/end":
		return Route{Kind: "unit_end"}
	default:
		return Route{}
	}
}
