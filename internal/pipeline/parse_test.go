package pipeline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"json fence", "Here you go:\n```json\n{\"a\": \"1\"}\n```\nthanks", `{"a": "1"}`, true},
		{"json fence preferred over earlier braces", "{not this}\n```json\n{\"b\": 2}\n```", `{"b": 2}`, true},
		{"plain fence", "```\n{\"c\": 3}\n```", `{"c": 3}`, true},
		{"tagged fence", "```javascript\n{\"d\": 4}\n```", `{"d": 4}`, true},
		{"brace span", "prefix {\"e\": {\"f\": 5}} suffix", `{"e": {"f": 5}}`, true},
		{"fence without object falls to braces", "```html\n<p>x</p>\n```\nthen {\"g\": 6}", `{"g": 6}`, true},
		{"nothing", "no json here", "no json here", false},
		{"reversed braces", "} oops {", "} oops {", false},
	}
	for _, tc := range cases {
		got, ok := ExtractJSON(tc.in)
		require.Equal(t, tc.ok, ok, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}
}

func TestParseFileMap(t *testing.T) {
	raw := "```json\n" + `{
		"index.html": "<html></html>",
		"data.json": {"items": [1, 2]},
		"empty.txt": null,
		"../escape.js": "x",
		" ": "blank name"
	}` + "\n```"

	allow := func(name string) bool { return !strings.HasPrefix(name, "..") }
	files, err := ParseFileMap(raw, allow)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(FileMap{
		"index.html": "<html></html>",
		"data.json":  `{"items":[1,2]}`,
		"empty.txt":  "",
	}, files))
}

func TestParseFileMapUnwrapsFiles(t *testing.T) {
	files, err := ParseFileMap(`{"files": {"index.html": "<p>hi</p>", "script.js": "go()"}}`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"index.html", "script.js"}, files.Names())

	// A "files" key next to real files is a file in its own right.
	files, err = ParseFileMap(`{"files": "list", "index.html": "x"}`, nil)
	require.NoError(t, err)
	require.Equal(t, "list", files["files"])
}

func TestParseFileMapMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"I could not do it",
		"{broken json",
		"{}",
		`{"files": {}}`,
		`{"../../etc/passwd": "x"}`,
		"[1, 2, 3]",
	} {
		_, err := ParseFileMap(raw, func(name string) bool { return !strings.HasPrefix(name, "..") })
		require.ErrorIs(t, err, llm.ErrMalformedOutput, raw)
	}
}

func TestParseQA(t *testing.T) {
	require.Equal(t, QAResult{TestsPassed: true, Feedback: "ok"},
		ParseQA("```json\n{\"tests_passed\": true, \"feedback\": \"ok\"}\n```"))

	require.Equal(t, QAResult{TestsPassed: false, Feedback: "fix focus"},
		ParseQA(`{"tests_passed": false, "feedback": "fix focus"}`))

	// Only a boolean true passes.
	require.False(t, ParseQA(`{"tests_passed": "true", "feedback": ""}`).TestsPassed)
	require.False(t, ParseQA(`{"tests_passed": 1}`).TestsPassed)
	require.False(t, ParseQA(`{"feedback": "missing verdict"}`).TestsPassed)

	require.Equal(t, `["a","b"]`, ParseQA(`{"tests_passed": false, "feedback": ["a", "b"]}`).Feedback)
}

func TestParseQAInvalidQuotesRawPrefix(t *testing.T) {
	long := strings.Repeat("é", 600)
	got := ParseQA(long)
	require.False(t, got.TestsPassed)
	require.Equal(t, "QA output not valid JSON. Raw: "+strings.Repeat("é", 500), got.Feedback)
}
