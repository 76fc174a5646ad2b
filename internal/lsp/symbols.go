package lsp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// WorkspaceSymbols searches the workspace for symbols matching a
// free-text query. The call is synchronous; a non-empty result is handed
// to the symbol-picker collaborator together with the original query so
// the picker can re-display and filter.
func (c *Client) WorkspaceSymbols(query string) ([]SymbolInformation, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if err := c.require(FeatWorkspaceSymbol); err != nil {
		return nil, err
	}

	raw, err := c.Call("workspace/symbol", WorkspaceSymbolParams{Query: query})
	if err != nil {
		return nil, err
	}

	var syms []SymbolInformation
	if !isNullResult(raw) {
		if err := json.Unmarshal(raw, &syms); err != nil {
			return nil, errors.Wrap(err, "workspace symbols")
		}
	}
	if len(syms) == 0 {
		c.hooks.showMessage("symbol not found: " + query)
		return nil, errors.Mark(errors.Newf("no symbols for %q", query), ErrEmptyResult)
	}

	c.hooks.showSymbols(query, syms)
	return syms, nil
}
