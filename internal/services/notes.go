package services

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	portalNotesPrefix  = "Customer Portal Notes: "
	flexIVRNotesPrefix = "FlexIVR Notes: "
	maxNotesLength     = 1000
)

var notesPolicy = bluemonday.StrictPolicy()

// sanitizeNotes strips markup from free text before it is stored on the field-service record.
func sanitizeNotes(notes string) string {
	cleaned := html.UnescapeString(notesPolicy.Sanitize(notes))
	cleaned = strings.TrimSpace(cleaned)
	if r := []rune(cleaned); len(r) > maxNotesLength {
		cleaned = string(r[:maxNotesLength])
	}
	return cleaned
}

// mergeNotes appends prefixed new notes to the existing ones on a new line.
func mergeNotes(existing, incoming, prefix string) string {
	incoming = sanitizeNotes(incoming)
	if incoming == "" {
		return existing
	}
	if existing == "" {
		return prefix + incoming
	}
	return existing + "\n" + prefix + incoming
}
