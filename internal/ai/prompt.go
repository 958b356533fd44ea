package ai

import (
	_ "embed"
	"strings"
	"time"
)

//go:embed prompt.md
var promptTemplate string

// SystemPrompt renders the instructions sent ahead of every conversation.
func SystemPrompt(now time.Time) string {
	return strings.ReplaceAll(promptTemplate, "{{CURRENT_DATE}}", now.Format("January 2006"))
}
