package lsp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// selectionState is the cached selection-range tree for one document,
// flattened leaf-to-root. Expand and shrink walk the chain without
// re-querying; a fresh fetch replaces the whole state.
type selectionState struct {
	chain []Range
	idx   int
}

// ExpandSelection widens the selection to the next enclosing range. The
// first invocation for a document fetches a fresh tree from the server at
// pos and selects its innermost range; later invocations walk upward in
// the cached tree.
func (c *Client) ExpandSelection(uri DocumentURI, pos Position) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatSelectionRange); err != nil {
		return err
	}

	c.selMu.Lock()
	state := c.selections[uri]
	if state == nil {
		c.selMu.Unlock()
		return c.fetchSelection(uri, pos)
	}
	if state.idx+1 >= len(state.chain) {
		c.selMu.Unlock()
		c.hooks.showMessage("selection cannot grow further")
		return nil
	}
	state.idx++
	next := state.chain[state.idx]
	c.selMu.Unlock()

	c.hooks.selectRange(uri, next)
	return nil
}

// ShrinkSelection narrows the selection to the previously selected range.
func (c *Client) ShrinkSelection(uri DocumentURI) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatSelectionRange); err != nil {
		return err
	}

	c.selMu.Lock()
	state := c.selections[uri]
	if state == nil {
		c.selMu.Unlock()
		c.hooks.showMessage("no selection to shrink")
		return nil
	}
	if state.idx == 0 {
		c.selMu.Unlock()
		c.hooks.showMessage("selection cannot shrink further")
		return nil
	}
	state.idx--
	prev := state.chain[state.idx]
	c.selMu.Unlock()

	c.hooks.selectRange(uri, prev)
	return nil
}

// RefreshSelection forces a new fetch at pos, discarding any cached tree.
func (c *Client) RefreshSelection(uri DocumentURI, pos Position) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatSelectionRange); err != nil {
		return err
	}
	return c.fetchSelection(uri, pos)
}

// fetchSelection queries the server and replaces the cached tree. Any
// previous tree is discarded before the request goes out.
func (c *Client) fetchSelection(uri DocumentURI, pos Position) error {
	c.discardSelection(uri)

	raw, err := c.Call("textDocument/selectionRange", SelectionRangeParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Positions:    []Position{pos},
	})
	if err != nil {
		return err
	}

	var trees []SelectionRange
	if !isNullResult(raw) {
		if err := json.Unmarshal(raw, &trees); err != nil {
			return errors.Wrap(err, "selection ranges")
		}
	}
	if len(trees) == 0 {
		c.hooks.showMessage("no selection ranges at cursor")
		return errors.Mark(errors.New("no selection ranges"), ErrEmptyResult)
	}

	chain := flattenSelection(&trees[0])
	state := &selectionState{chain: chain}

	c.selMu.Lock()
	c.selections[uri] = state
	c.selMu.Unlock()

	c.hooks.selectRange(uri, chain[0])
	return nil
}

// discardSelection drops the cached tree for a document.
func (c *Client) discardSelection(uri DocumentURI) {
	c.selMu.Lock()
	delete(c.selections, uri)
	c.selMu.Unlock()
}

// flattenSelection walks parent links into a leaf-to-root range chain,
// skipping degenerate duplicates some servers emit.
func flattenSelection(node *SelectionRange) []Range {
	var chain []Range
	for n := node; n != nil; n = n.Parent {
		if len(chain) > 0 && chain[len(chain)-1] == n.Range {
			continue
		}
		chain = append(chain, n.Range)
	}
	return chain
}
