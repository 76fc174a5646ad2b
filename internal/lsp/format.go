package lsp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// EditContext carries the editing surface's formatting preferences and
// the caller's cursor, which the edit collaborator restores after
// applying the returned edits.
type EditContext struct {
	TabSize      int
	InsertSpaces bool
	Cursor       *Position
}

// options converts the context to wire form. A zero tab size falls back
// to the conventional 8.
func (e EditContext) options() FormattingOptions {
	tab := e.TabSize
	if tab <= 0 {
		tab = 8
	}
	return FormattingOptions{TabSize: tab, InsertSpaces: e.InsertSpaces}
}

// FormatDocument formats the whole document synchronously and delegates
// the edit list to the text-edit collaborator.
func (c *Client) FormatDocument(uri DocumentURI, ectx EditContext) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatFormatting); err != nil {
		return err
	}

	raw, err := c.Call("textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Options:      ectx.options(),
	})
	if err != nil {
		return err
	}

	return c.applyFormatEdits(uri, raw, ectx.Cursor)
}

// FormatRange formats a range within the document synchronously.
func (c *Client) FormatRange(uri DocumentURI, rng Range, ectx EditContext) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatRangeFormatting); err != nil {
		return err
	}

	raw, err := c.Call("textDocument/rangeFormatting", DocumentRangeFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Range:        rng,
		Options:      ectx.options(),
	})
	if err != nil {
		return err
	}

	return c.applyFormatEdits(uri, raw, ectx.Cursor)
}

// applyFormatEdits decodes the edit list and hands a non-empty one to the
// collaborator together with the cursor to restore.
func (c *Client) applyFormatEdits(uri DocumentURI, raw json.RawMessage, cursor *Position) error {
	if isNullResult(raw) {
		c.hooks.showMessage("document already formatted")
		return errors.Mark(errors.New("no formatting edits"), ErrEmptyResult)
	}

	var edits []TextEdit
	if err := json.Unmarshal(raw, &edits); err != nil {
		return errors.Wrap(err, "formatting edits")
	}
	if len(edits) == 0 {
		c.hooks.showMessage("document already formatted")
		return errors.Mark(errors.New("no formatting edits"), ErrEmptyResult)
	}

	c.hooks.applyEdits(uri, edits, cursor)
	return nil
}
