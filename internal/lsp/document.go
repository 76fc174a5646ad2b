package lsp

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DocumentSyncRecord tracks one open document. Version is a strictly
// increasing revision number distinct from content; it must grow on every
// change notification and is never reused.
type DocumentSyncRecord struct {
	URI        DocumentURI
	LanguageID string
	Version    int
}

// DocumentStore is the per-connection table of open documents. Records
// are created on didOpen, updated on didChange and removed on didClose.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[DocumentURI]*DocumentSyncRecord
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[DocumentURI]*DocumentSyncRecord)}
}

// open creates a record at version 1.
func (s *DocumentStore) open(uri DocumentURI, languageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[uri]; exists {
		return errors.Mark(errors.Newf("%s", uri), ErrDocumentOpen)
	}
	s.docs[uri] = &DocumentSyncRecord{URI: uri, LanguageID: languageID, Version: 1}
	return nil
}

// bump advances a record to the caller's revision, or to the next version
// when the external counter lags. The version never decreases and is
// never reused.
func (s *DocumentStore) bump(uri DocumentURI, revision int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, exists := s.docs[uri]
	if !exists {
		return 0, errors.Mark(errors.Newf("%s", uri), ErrDocumentNotOpen)
	}
	if revision <= doc.Version {
		revision = doc.Version + 1
	}
	doc.Version = revision
	return revision, nil
}

// close removes a record.
func (s *DocumentStore) close(uri DocumentURI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[uri]; !exists {
		return errors.Mark(errors.Newf("%s", uri), ErrDocumentNotOpen)
	}
	delete(s.docs, uri)
	return nil
}

// get returns a copy of a record.
func (s *DocumentStore) get(uri DocumentURI) (DocumentSyncRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, exists := s.docs[uri]
	if !exists {
		return DocumentSyncRecord{}, false
	}
	return *doc, true
}

// all returns copies of every record.
func (s *DocumentStore) all() []DocumentSyncRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentSyncRecord, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out
}

// --- Sync notifications ---

// DidOpen announces an opened document with its full text at version 1.
func (c *Client) DidOpen(uri DocumentURI, languageID, text string) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.docs.open(uri, languageID); err != nil {
		return err
	}

	return c.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    1,
			Text:       text,
		},
	})
}

// DidChange announces a content change, always resending the full text.
// Incremental range deltas are deliberately not computed; revision is the
// editing surface's change counter and maps onto a strictly increasing
// document version.
func (c *Client) DidChange(uri DocumentURI, text string, revision int) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	version, err := c.docs.bump(uri, revision)
	if err != nil {
		return err
	}

	return c.Notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

// DidClose announces a closed document and drops its record along with
// any cached selection-range tree.
func (c *Client) DidClose(uri DocumentURI) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.docs.close(uri); err != nil {
		return err
	}
	c.discardSelection(uri)

	return c.Notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// DidSave announces a saved document. Gated on the negotiated save
// capability; without it this is a silent no-op.
func (c *Client) DidSave(uri DocumentURI) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if !c.caps().SupportsSave() {
		c.log.Debug("didSave skipped, server declares no save interest", zap.String("uri", string(uri)))
		return nil
	}
	if _, ok := c.docs.get(uri); !ok {
		return errors.Mark(errors.Newf("%s", uri), ErrDocumentNotOpen)
	}

	return c.Notify("textDocument/didSave", DidSaveTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// OpenDocuments lists the currently tracked documents.
func (c *Client) OpenDocuments() []DocumentSyncRecord {
	return c.docs.all()
}

// IsDocumentOpen reports whether a document is tracked.
func (c *Client) IsDocumentOpen(uri DocumentURI) bool {
	_, ok := c.docs.get(uri)
	return ok
}
