package lsp

import (
	"github.com/cockroachdb/errors"
)

// The go-to-location family: position-based synchronous requests whose
// first result is handed to the location-navigation collaborator. peek
// suppresses recording of the pre-jump position.

// GotoDefinition jumps to the definition of the symbol at pos.
func (c *Client) GotoDefinition(uri DocumentURI, pos Position, peek bool) ([]Location, error) {
	return c.gotoLocation(FeatDefinition, "textDocument/definition", "definition not found", uri, pos, peek)
}

// GotoDeclaration jumps to the declaration of the symbol at pos.
func (c *Client) GotoDeclaration(uri DocumentURI, pos Position, peek bool) ([]Location, error) {
	return c.gotoLocation(FeatDeclaration, "textDocument/declaration", "declaration not found", uri, pos, peek)
}

// GotoTypeDefinition jumps to the type definition of the symbol at pos.
func (c *Client) GotoTypeDefinition(uri DocumentURI, pos Position, peek bool) ([]Location, error) {
	return c.gotoLocation(FeatTypeDefinition, "textDocument/typeDefinition", "type definition not found", uri, pos, peek)
}

// GotoImplementation jumps to an implementation of the symbol at pos.
func (c *Client) GotoImplementation(uri DocumentURI, pos Position, peek bool) ([]Location, error) {
	return c.gotoLocation(FeatImplementation, "textDocument/implementation", "implementation not found", uri, pos, peek)
}

// gotoLocation is the shared shape of the family. A timeout or an empty
// reply are both "nothing found" from the caller's point of view and are
// reported with the family-specific message.
func (c *Client) gotoLocation(f Feature, method, notFound string, uri DocumentURI, pos Position, peek bool) ([]Location, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if err := c.require(f); err != nil {
		return nil, err
	}

	raw, err := c.Call(method, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.hooks.showMessage(notFound)
		}
		return nil, err
	}

	locs := parseLocations(raw)
	if len(locs) == 0 {
		c.hooks.showMessage(notFound)
		return nil, errors.Mark(errors.New(notFound), ErrEmptyResult)
	}

	c.hooks.showLocation(locs[0], !peek)
	return locs, nil
}

// References finds all references to the symbol at pos and hands the list
// to the reference-rendering collaborator.
func (c *Client) References(uri DocumentURI, pos Position, includeDeclaration bool) ([]Location, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if err := c.require(FeatReferences); err != nil {
		return nil, err
	}

	raw, err := c.Call("textDocument/references", ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDeclaration},
	})
	if err != nil {
		return nil, err
	}

	locs := parseLocations(raw)
	if len(locs) == 0 {
		c.hooks.showMessage("no references found")
		return nil, errors.Mark(errors.New("no references found"), ErrEmptyResult)
	}

	c.hooks.showReferences(locs)
	return locs, nil
}
