package lsp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Rename renames the symbol at pos across the workspace. The call is
// synchronous; a non-empty workspace edit is delegated to the text-edit
// collaborator.
func (c *Client) Rename(uri DocumentURI, pos Position, newName string) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatRename); err != nil {
		return err
	}
	if newName == "" {
		return errors.New("rename requires a new name")
	}

	raw, err := c.Call("textDocument/rename", RenameParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		NewName: newName,
	})
	if err != nil {
		return err
	}

	if isNullResult(raw) {
		c.hooks.showMessage("nothing to rename here")
		return errors.Mark(errors.New("rename produced no edit"), ErrEmptyResult)
	}

	var edit WorkspaceEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return errors.Wrap(err, "rename edit")
	}
	if edit.IsEmpty() {
		c.hooks.showMessage("nothing to rename here")
		return errors.Mark(errors.New("rename produced no edit"), ErrEmptyResult)
	}

	c.hooks.applyWorkspaceEdit(&edit)
	return nil
}
