package documents

import (
	"fmt"
	"strings"
)

// Store is an ordered, in-memory collection of documents for one run.
// Insertion order is the ranking tie-break, so it is preserved exactly.
// Store is not safe for concurrent use.
type Store struct {
	items []Document
	ids   map[string]struct{}
}

func NewStore() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Add validates text and appends a new document labelled by sourceLabel.
// A blank label gets a generated "doc-<n>" identifier and a label that was
// already used gets a "~<n>" suffix.
func (s *Store) Add(sourceLabel, text string) (Document, error) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}

	id := s.uniqueID(strings.TrimSpace(sourceLabel))

	doc, err := newDocument(id, text)
	if err != nil {
		return Document{}, err
	}

	s.items = append(s.items, doc)
	s.ids[id] = struct{}{}

	return doc, nil
}

// All returns a snapshot of the documents in insertion order.
func (s *Store) All() []Document {
	out := make([]Document, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) FindByID(id string) (Document, bool) {
	for _, doc := range s.items {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

// IDs returns document identifiers in insertion order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.items))
	for _, doc := range s.items {
		ids = append(ids, doc.ID)
	}
	return ids
}

func (s *Store) uniqueID(label string) string {
	if label == "" {
		label = fmt.Sprintf("doc-%d", len(s.items)+1)
	}

	id := label
	for n := 2; ; n++ {
		if _, taken := s.ids[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s~%d", label, n)
	}
}
