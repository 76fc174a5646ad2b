package lsp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Call hierarchy is a two-step protocol: prepare resolves the symbol at
// the cursor to candidate items, then the chosen item drives a second
// synchronous call for incoming or outgoing calls.

// CallDirection selects which side of the hierarchy to query.
type CallDirection int

const (
	// CallsIncoming lists the callers of the prepared item.
	CallsIncoming CallDirection = iota
	// CallsOutgoing lists the callees of the prepared item.
	CallsOutgoing
)

// IncomingCalls shows who calls the symbol at pos.
func (c *Client) IncomingCalls(uri DocumentURI, pos Position) error {
	return c.callHierarchy(uri, pos, CallsIncoming)
}

// OutgoingCalls shows what the symbol at pos calls.
func (c *Client) OutgoingCalls(uri DocumentURI, pos Position) error {
	return c.callHierarchy(uri, pos, CallsOutgoing)
}

func (c *Client) callHierarchy(uri DocumentURI, pos Position, dir CallDirection) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatCallHierarchy); err != nil {
		return err
	}

	item, err := c.prepareCallHierarchy(uri, pos)
	if err != nil {
		return err
	}

	switch dir {
	case CallsIncoming:
		return c.incomingCalls(*item)
	default:
		return c.outgoingCalls(*item)
	}
}

// prepareCallHierarchy resolves the cursor symbol to a hierarchy item.
// With more than one candidate the chooser collaborator picks; a negative
// choice aborts.
func (c *Client) prepareCallHierarchy(uri DocumentURI, pos Position) (*CallHierarchyItem, error) {
	raw, err := c.Call("textDocument/prepareCallHierarchy", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	})
	if err != nil {
		return nil, err
	}

	var items []CallHierarchyItem
	if !isNullResult(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errors.Wrap(err, "call hierarchy items")
		}
	}
	if len(items) == 0 {
		c.hooks.showMessage("no call hierarchy at cursor")
		return nil, errors.Mark(errors.New("no call hierarchy items"), ErrEmptyResult)
	}

	choice := 0
	if len(items) > 1 {
		choice = c.hooks.chooseHierarchyItem(items)
		if choice < 0 || choice >= len(items) {
			return nil, errors.New("call hierarchy selection cancelled")
		}
	}
	return &items[choice], nil
}

func (c *Client) incomingCalls(item CallHierarchyItem) error {
	raw, err := c.Call("callHierarchy/incomingCalls", CallHierarchyItemParams{Item: item})
	if err != nil {
		return err
	}

	var calls []CallHierarchyIncomingCall
	if !isNullResult(raw) {
		if err := json.Unmarshal(raw, &calls); err != nil {
			return errors.Wrap(err, "incoming calls")
		}
	}
	if len(calls) == 0 {
		c.hooks.showMessage("no incoming calls for " + item.Name)
		return errors.Mark(errors.New("no incoming calls"), ErrEmptyResult)
	}

	c.hooks.showIncomingCalls(item, calls)
	return nil
}

func (c *Client) outgoingCalls(item CallHierarchyItem) error {
	raw, err := c.Call("callHierarchy/outgoingCalls", CallHierarchyItemParams{Item: item})
	if err != nil {
		return err
	}

	var calls []CallHierarchyOutgoingCall
	if !isNullResult(raw) {
		if err := json.Unmarshal(raw, &calls); err != nil {
			return errors.Wrap(err, "outgoing calls")
		}
	}
	if len(calls) == 0 {
		c.hooks.showMessage("no outgoing calls for " + item.Name)
		return errors.Mark(errors.New("no outgoing calls"), ErrEmptyResult)
	}

	c.hooks.showOutgoingCalls(item, calls)
	return nil
}
