// Package profile holds the pure profile-update decision logic. No I/O:
// callers fetch the current profile and apply the verdicts.
package profile

import (
	"strings"

	"github.com/swipekit/swipekit/internal/wire"
)

// Placeholder marks template text that was never resolved to the account's
// assigned name. Its presence always forces an update.
const Placeholder = "%username%"

// ResolvePlaceholders substitutes the account's assigned name into target
// text before any comparison or upload.
func ResolvePlaceholders(text, assignedName string) string {
	return strings.ReplaceAll(text, Placeholder, assignedName)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NeedsBioUpdate reports whether the current bio should be replaced with
// the target. Short bios (under 10 normalized characters) are always
// replaced; longer ones only when they differ from the target.
func NeedsBioUpdate(current, target string) bool {
	if current == "" && target != "" {
		return true
	}
	if strings.Contains(current, Placeholder) {
		return true
	}

	currentNorm := normalize(current)
	targetNorm := normalize(target)

	if currentNorm == targetNorm {
		return false
	}
	if len(currentNorm) < 10 {
		return true
	}
	return targetNorm != ""
}

// NeedsPromptUpdate reports whether the prompt with targetID must be
// written. Only an existing prompt whose text already normalized-equals the
// target suppresses the update.
func NeedsPromptUpdate(current []wire.Prompt, targetID, targetText string) bool {
	for _, prompt := range current {
		if prompt.ID != targetID {
			continue
		}
		if prompt.Text == "" || strings.Contains(prompt.Text, Placeholder) {
			return true
		}
		if normalize(prompt.Text) == normalize(targetText) {
			return false
		}
	}
	return true
}
