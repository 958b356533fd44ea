package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// FallbackSuggestions are offered when a reply could not be decoded at all.
var FallbackSuggestions = []string{"Tell me more", "Show recommendations", "Start over"}

// ParsedResponse is the structured form of a raw assistant reply.
type ParsedResponse struct {
	Text            string          `json:"text"`
	Suggestions     []string        `json:"suggestions"`
	Recommendations *Recommendation `json:"recommendations,omitempty"`
	// Structured is false when the reply was not valid JSON and the fallback was used.
	Structured bool `json:"-"`
}

// Message converts the response into an assistant history entry.
func (p ParsedResponse) Message() Message {
	return Message{
		Role:            RoleAssistant,
		Content:         p.Text,
		Recommendations: p.Recommendations,
		Suggestions:     p.Suggestions,
	}
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Parse extracts a structured response from raw model output. It never fails:
// when nothing decodes, the raw text is returned with FallbackSuggestions.
func Parse(raw string) ParsedResponse {
	for _, candidate := range candidates(raw) {
		data, ok := decodeObject(candidate)
		if !ok {
			continue
		}
		return fromObject(raw, data)
	}

	return ParsedResponse{
		Text:        raw,
		Suggestions: append([]string(nil), FallbackSuggestions...),
	}
}

// candidates returns the JSON candidates in order of preference: a fenced
// block, the outermost braces, then the whole text.
func candidates(raw string) []string {
	out := make([]string, 0, 3)

	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		out = append(out, strings.TrimSpace(raw[start:end+1]))
	}

	return append(out, strings.TrimSpace(raw))
}

func decodeObject(candidate string) (map[string]any, bool) {
	if candidate == "" {
		return nil, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(candidate), &data); err != nil || data == nil {
		return nil, false
	}

	return data, true
}

func fromObject(raw string, data map[string]any) ParsedResponse {
	text, _ := data["text"].(string)
	if text == "" {
		text = raw
	}

	return ParsedResponse{
		Text:            text,
		Suggestions:     coerceStrings(data["suggestions"]),
		Recommendations: coerceRecommendation(data["recommendations"]),
		Structured:      true,
	}
}

// coerceStrings accepts a list of scalars or a single scalar.
func coerceStrings(v any) []string {
	out := []string{}
	if v == nil {
		return out
	}

	var values []string
	if err := mapstructure.WeakDecode(v, &values); err != nil {
		return out
	}

	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}

	return out
}

func coerceRecommendation(v any) *Recommendation {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	rec := &Recommendation{
		Frontend: coercePick(m["frontend"]),
		Backend:  coercePick(m["backend"]),
		Database: coercePick(m["database"]),
		Hosting:  coercePick(m["hosting"]),
		Summary:  coerceString(m["summary"]),
		FollowUp: coerceString(m["followUp"]),
	}

	if rec.Empty() {
		return nil
	}

	return rec
}

func coercePick(v any) *Pick {
	if _, ok := v.(map[string]any); !ok {
		return nil
	}

	var pick Pick
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &pick,
	})
	if err != nil {
		return nil
	}
	if err := decoder.Decode(v); err != nil {
		return nil
	}

	pick.Name = strings.TrimSpace(pick.Name)
	if pick.Name == "" {
		return nil
	}
	pick.Reason = strings.TrimSpace(pick.Reason)
	pick.Alternatives = coerceStrings(pick.Alternatives)

	return &pick
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(bytes)
	}
}
