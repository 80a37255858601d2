package postprocess

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "clean object",
			input:    `{"items":[]}`,
			expected: `{"items":[]}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "\n  {\"items\":[]}  \n",
			expected: `{"items":[]}`,
		},
		{
			name:     "think block before object",
			input:    "<think>The user wants French.</think>\n{\"items\":[{\"id\":1}]}",
			expected: `{"items":[{"id":1}]}`,
		},
		{
			name:     "json code fence",
			input:    "```json\n{\"items\":[{\"id\":1}]}\n```",
			expected: `{"items":[{"id":1}]}`,
		},
		{
			name:     "bare code fence with prose",
			input:    "Here is the result:\n```\n{\"items\":[]}\n```\nLet me know!",
			expected: `{"items":[]}`,
		},
		{
			name:     "prose around object",
			input:    `Sure! {"items":[{"id":2,"translated":"{{x}}"}]} Hope this helps.`,
			expected: `{"items":[{"id":2,"translated":"{{x}}"}]}`,
		},
		{
			name:     "bare array",
			input:    "[{\"id\":1},{\"id\":2}]\n",
			expected: `[{"id":1},{"id":2}]`,
		},
		{
			name:     "no object",
			input:    "  I cannot help with that.  ",
			expected: "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.expected {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRemoveThinkingBlocks(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Some text<thinking>Let me translate this</thinking>More text", "Some textMore text"},
		{"Start<reasoning>Analyzing</reasoning>End", "StartEnd"},
		{"<THINK>upper</THINK>{}", "{}"},
		{"<reflection>multi\nline</reflection>\nok", "ok"},
	}
	for _, tt := range tests {
		if got := removeThinkingBlocks(tt.input); got != tt.expected {
			t.Errorf("removeThinkingBlocks(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
