package suggest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ParseReply reads the first JSON object in a model reply into a
// SuggestionResponse. Markdown code fences and surrounding prose are ignored.
// Values of the wrong kind (a priority of "high", say) are a parse error.
func ParseReply(reply string) (*SuggestionResponse, error) {
	raw, err := extractObject(reply)
	if err != nil {
		return nil, err
	}

	var out SuggestionResponse
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncType(joinListHook),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSuggestionParse, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSuggestionParse, err)
	}
	out.RawReply = reply
	return &out, nil
}

func extractObject(reply string) (map[string]interface{}, error) {
	text := stripCodeFences(reply)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrSuggestionParse)
	}

	// prose before the object may contain braces of its own
	var lastErr error
	for start >= 0 {
		var obj map[string]interface{}
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		if lastErr = dec.Decode(&obj); lastErr == nil {
			return obj, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, fmt.Errorf("%w: %v", ErrSuggestionParse, lastErr)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string, e.g. ```json
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// joinListHook lets models answer tags as a JSON array
func joinListHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String || from.Kind() != reflect.Slice {
		return data, nil
	}
	items, ok := data.([]interface{})
	if !ok {
		return data, nil
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.TrimSpace(fmt.Sprintf("%v", item))
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ","), nil
}
