package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

const planSystemPrompt = `
You are an elite Product Manager. Create a concise, actionable PRD in markdown for the user's request.
Include: Overview, Goals, Features, Non-Goals, User Stories with acceptance criteria, Architecture Overview,
and a file-by-file breakdown with filenames and brief descriptions (HTML/CSS/JS only unless the user asks for a framework).
Cover accessibility (ARIA, focus, keyboard), mobile-first responsiveness and performance.
Favor modern visual design (spacing, elevation, motion) while keeping the code simple to run locally.
The output MUST be a single well-structured markdown document.`

const codeSystemPrompt = `
You are a Senior Frontend Engineer. Based on the PRD, produce production-quality HTML/CSS/JS.
Requirements: mobile-first responsive layout, strong accessibility (labels, roles, ARIA, focus states),
small modular functions, graceful error handling, smooth CSS transitions, CSS variables and consistent spacing.
No heavy frameworks unless explicitly requested. It must work by opening index.html, with no build step.
If QA feedback is included, apply it.
Respond ONLY with a JSON object mapping filenames to file contents.
Example: {"index.html": "...", "style.css": "...", "script.js": "..."}`

const qaSystemPrompt = `
You are a meticulous QA Engineer. Validate the code against the PRD's user stories and acceptance criteria.
Check responsive layout, accessibility (labels, roles, landmarks, keyboard, focus), visual quality
(spacing, color contrast), resilience (empty or invalid input, storage failures) and performance.
Fail for placeholder content, missing features or broken logic.
Output MUST be JSON: {"tests_passed": boolean, "feedback": string}.`

const strictReminder = "IMPORTANT: Return ONLY a valid JSON object mapping filenames to contents. No prose, no code fences."

func planMessages(request string) []llm.ChatMessage {
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: strings.TrimSpace(planSystemPrompt)},
		{Role: llm.RoleUser, Content: request},
	}
}

// codeMessages includes the previous verdict only when there is one.
func codeMessages(prd string, previous *QAResult, strict bool) []llm.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "PRD (markdown):\n%s\n\n", prd)
	if previous != nil {
		data, _ := json.Marshal(previous)
		fmt.Fprintf(&b, "QA feedback from the previous iteration (JSON):\n%s\n\n", data)
	}
	b.WriteString("Return ONLY the JSON object mapping filenames to contents.")
	if strict {
		b.WriteString("\n\n")
		b.WriteString(strictReminder)
	}
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: strings.TrimSpace(codeSystemPrompt)},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

func qaMessages(prd string, files FileMap) []llm.ChatMessage {
	data, err := json.Marshal(files)
	if err != nil {
		data = []byte("{}")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PRD (markdown):\n%s\n\n", prd)
	fmt.Fprintf(&b, "Code files (JSON mapping filename->content):\n%s\n\n", data)
	b.WriteString("Return ONLY the JSON, nothing else.")
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: strings.TrimSpace(qaSystemPrompt)},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
