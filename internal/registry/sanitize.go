package registry

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxDescriptionLen caps remote descriptions merged into the local index.
const maxDescriptionLen = 1024

// Sanitizer scrubs remote-supplied metadata before it enters the local
// index. Registries are not trusted to serve clean markup.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with a strict text-only policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// CleanMetadata returns a copy of the entry with untrusted fields scrubbed.
func (s *Sanitizer) CleanMetadata(entry TemplateMetadata) TemplateMetadata {
	entry.Description = s.cleanText(entry.Description, maxDescriptionLen)
	entry.Author = s.cleanText(entry.Author, 256)
	entry.Category = s.cleanText(entry.Category, 64)
	return entry
}

func (s *Sanitizer) cleanText(text string, maxLen int) string {
	cleaned := strings.TrimSpace(s.policy.Sanitize(text))
	if len(cleaned) > maxLen {
		cleaned = cleaned[:maxLen]
	}
	return cleaned
}
