// Package documents holds the candidate documents uploaded for a ranking run.
package documents

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is an uploaded candidate text. It is never modified after creation.
type Document struct {
	ID        string `json:"id"`
	Text      string `json:"-"`
	CharCount int    `json:"char_count"`
	WordCount int    `json:"word_count"`
}

// ValidationError reports input that cannot take part in a ranking run.
type ValidationError struct {
	// Subject names the rejected input, e.g. a document label or "job description".
	Subject string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Subject, e.Reason)
}

func newDocument(id, text string) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return Document{}, &ValidationError{Subject: id, Reason: "text is empty"}
	}

	return Document{
		ID:        id,
		Text:      text,
		CharCount: utf8.RuneCountInString(text),
		WordCount: len(strings.Fields(text)),
	}, nil
}
