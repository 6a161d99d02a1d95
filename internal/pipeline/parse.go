package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

const fence = "```"

// ExtractJSON locates the JSON object in a model reply. It prefers a ```json
// fence, then any fence whose body is an object, then the span from the first
// '{' to the last '}'. ok is false when none of these match.
func ExtractJSON(text string) (string, bool) {
	if start := strings.Index(text, fence+"json"); start != -1 {
		body := text[start+len(fence+"json"):]
		if end := strings.Index(body, fence); end != -1 {
			if candidate := strings.TrimSpace(body[:end]); candidate != "" {
				return candidate, true
			}
		}
	}

	if start := strings.Index(text, fence); start != -1 {
		body := text[start+len(fence):]
		if end := strings.Index(body, fence); end != -1 {
			candidate := strings.TrimSpace(stripFenceTag(body[:end]))
			if strings.HasPrefix(candidate, "{") && strings.HasSuffix(candidate, "}") {
				return candidate, true
			}
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1], true
	}
	return text, false
}

// stripFenceTag drops a language tag such as "js" on the fence's first line.
func stripFenceTag(body string) string {
	nl := strings.IndexByte(body, '\n')
	if nl == -1 {
		return body
	}
	tag := strings.TrimSpace(body[:nl])
	if tag == "" || strings.ContainsAny(tag, "{}\"") {
		return body
	}
	return body[nl+1:]
}

// ParseFileMap decodes a CODE reply into a FileMap. A {"files": {...}}
// wrapper is unwrapped, non-string values are kept as compact JSON text and
// names rejected by allow are dropped. Any failure, including an empty
// result, wraps llm.ErrMalformedOutput.
func ParseFileMap(raw string, allow func(name string) bool) (FileMap, error) {
	text, ok := ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in coder output", llm.ErrMalformedOutput)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrMalformedOutput, err)
	}
	if inner, ok := obj["files"]; ok && len(obj) == 1 {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			obj = nested
		}
	}

	files := make(FileMap, len(obj))
	for name, value := range obj {
		name = strings.TrimSpace(name)
		if name == "" || (allow != nil && !allow(name)) {
			continue
		}
		files[name] = valueText(value)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: coder output has no usable files", llm.ErrMalformedOutput)
	}
	return files, nil
}

// ParseQA decodes a QA reply. Only a boolean true passes; unparsable replies
// yield a failing verdict quoting the start of the reply.
func ParseQA(raw string) QAResult {
	text, _ := ExtractJSON(raw)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return QAResult{
			TestsPassed: false,
			Feedback:    "QA output not valid JSON. Raw: " + truncate(text, 500),
		}
	}

	var result QAResult
	if v, ok := obj["tests_passed"]; ok {
		var passed bool
		if err := json.Unmarshal(v, &passed); err == nil {
			result.TestsPassed = passed
		}
	}
	if v, ok := obj["feedback"]; ok {
		result.Feedback = valueText(v)
	}
	return result
}

func valueText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func sortedKeys(m FileMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
