package lsp

import (
	"encoding/json"
)

// Position- and document-scoped requests sent asynchronously by default.
// Each takes a typed continuation invoked when the response arrives; under
// sync mode the same call blocks and the continuation has run by the time
// it returns.

// Completion requests completion proposals at pos.
func (c *Client) Completion(uri DocumentURI, pos Position, onResult func(*CompletionList, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatCompletion); err != nil {
		return err
	}

	params := CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		Context: &CompletionContext{TriggerKind: CompletionTriggerInvoked},
	}
	return c.dispatch("textDocument/completion", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		onResult(parseCompletions(raw), nil)
	})
}

// ResolveCompletion fills in the lazy members of a completion item.
func (c *Client) ResolveCompletion(item CompletionItem, onResult func(*CompletionItem, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatCompletionResolve); err != nil {
		return err
	}

	return c.dispatch("completionItem/resolve", item, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		if isNullResult(raw) {
			// An empty resolve leaves the original item usable.
			onResult(&item, nil)
			return
		}
		var resolved CompletionItem
		if err := json.Unmarshal(raw, &resolved); err != nil {
			onResult(&item, nil)
			return
		}
		onResult(&resolved, nil)
	})
}

// Hover requests hover information at pos.
func (c *Client) Hover(uri DocumentURI, pos Position, onResult func(*Hover, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatHover); err != nil {
		return err
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}
	return c.dispatch("textDocument/hover", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		if isNullResult(raw) {
			c.hooks.showMessage("no hover information")
			onResult(nil, nil)
			return
		}
		var hover Hover
		if err := json.Unmarshal(raw, &hover); err != nil {
			onResult(nil, nil)
			return
		}
		onResult(&hover, nil)
	})
}

// SignatureHelp requests signature information at pos.
func (c *Client) SignatureHelp(uri DocumentURI, pos Position, onResult func(*SignatureHelp, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatSignatureHelp); err != nil {
		return err
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}
	return c.dispatch("textDocument/signatureHelp", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		if isNullResult(raw) {
			onResult(nil, nil)
			return
		}
		var help SignatureHelp
		if err := json.Unmarshal(raw, &help); err != nil {
			onResult(nil, nil)
			return
		}
		onResult(&help, nil)
	})
}

// DocumentHighlight requests occurrence highlights for the symbol at pos.
func (c *Client) DocumentHighlight(uri DocumentURI, pos Position, onResult func([]DocumentHighlight, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatHighlight); err != nil {
		return err
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}
	return c.dispatch("textDocument/documentHighlight", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		var highlights []DocumentHighlight
		if !isNullResult(raw) {
			_ = json.Unmarshal(raw, &highlights)
		}
		onResult(highlights, nil)
	})
}

// DocumentSymbols requests the symbol outline of a document. The result
// may be hierarchical DocumentSymbols or flat SymbolInformation depending
// on the server; both decode into the hierarchical form here because the
// flat form is a field subset.
func (c *Client) DocumentSymbols(uri DocumentURI, onResult func([]DocumentSymbol, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatDocumentSymbol); err != nil {
		return err
	}

	params := DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: uri}}
	return c.dispatch("textDocument/documentSymbol", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		var symbols []DocumentSymbol
		if !isNullResult(raw) {
			_ = json.Unmarshal(raw, &symbols)
		}
		if len(symbols) == 0 {
			c.hooks.showMessage("no symbols in document")
		}
		onResult(symbols, nil)
	})
}

// CodeActions requests quick fixes and refactorings for a range, passing
// along the cached diagnostics that overlap it.
func (c *Client) CodeActions(uri DocumentURI, rng Range, onResult func([]CodeAction, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatCodeAction); err != nil {
		return err
	}

	params := CodeActionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Range:        rng,
		Context:      CodeActionContext{Diagnostics: c.diagnosticsInRange(uri, rng)},
	}
	return c.dispatch("textDocument/codeAction", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		var actions []CodeAction
		if !isNullResult(raw) {
			_ = json.Unmarshal(raw, &actions)
		}
		if len(actions) == 0 {
			c.hooks.showMessage("no code actions available")
		}
		onResult(actions, nil)
	})
}

// FoldingRanges requests the foldable regions of a document.
func (c *Client) FoldingRanges(uri DocumentURI, onResult func([]FoldingRange, *RPCError)) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatFoldingRange); err != nil {
		return err
	}

	params := FoldingRangeParams{TextDocument: TextDocumentIdentifier{URI: uri}}
	return c.dispatch("textDocument/foldingRange", params, func(raw json.RawMessage, rpcErr *RPCError) {
		if rpcErr != nil {
			onResult(nil, rpcErr)
			return
		}
		var ranges []FoldingRange
		if !isNullResult(raw) {
			_ = json.Unmarshal(raw, &ranges)
		}
		onResult(ranges, nil)
	})
}

// diagnosticsInRange filters the cached diagnostics for a document down
// to those intersecting rng.
func (c *Client) diagnosticsInRange(uri DocumentURI, rng Range) []Diagnostic {
	all := c.Diagnostics(uri)
	if len(all) == 0 {
		return []Diagnostic{}
	}
	out := make([]Diagnostic, 0, len(all))
	for _, d := range all {
		if rangesOverlap(d.Range, rng) {
			out = append(out, d)
		}
	}
	return out
}

// rangesOverlap reports whether two line spans intersect. Character
// precision is unnecessary for code-action context.
func rangesOverlap(a, b Range) bool {
	return a.Start.Line <= b.End.Line && b.Start.Line <= a.End.Line
}
