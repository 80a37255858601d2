// Package postprocess removes common LLM artifacts from raw model replies
// before they are parsed as JSON.
//
// Backends that honour a response schema natively return clean JSON, but
// local models (Ollama) and tool-less fallbacks sometimes wrap the object in
// reasoning blocks or Markdown code fences.
package postprocess

import (
	"regexp"
	"strings"
)

// ExtractJSON returns the JSON object embedded in text:
//  1. Thinking / reasoning block removal
//  2. Code fence removal
//  3. Trimming to the outermost {…}
//
// If no object delimiters are found the cleaned text is returned as is and
// the caller's parser reports it as malformed.
func ExtractJSON(text string) string {
	text = removeThinkingBlocks(text)
	text = removeCodeFences(text)
	return trimToObject(text)
}

// --- Phase 1: thinking blocks ---

// thinkingBlockRe matches complete <thinking>…</thinking> style blocks.
// Each tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

func removeThinkingBlocks(text string) string {
	return strings.TrimSpace(thinkingBlockRe.ReplaceAllString(text, ""))
}

// --- Phase 2: code fences ---

// codeFenceRe captures the body of the first ``` fence, with or without a
// language tag.
var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

func removeCodeFences(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// --- Phase 3: outer object ---

func trimToObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		if end := strings.LastIndexByte(text, ']'); end > 0 {
			return text[:end+1]
		}
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
