package lsp

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// FolderSet is the ordered collection of workspace folders, unique by
// URI. It is mutated only through the add/remove operations below, each
// of which notifies the server before touching local state so the two
// change atomically from the caller's perspective.
type FolderSet struct {
	mu      sync.RWMutex
	folders []WorkspaceFolder
}

// NewFolderSet creates an empty set.
func NewFolderSet() *FolderSet {
	return &FolderSet{}
}

// All returns the folders in insertion order.
func (f *FolderSet) All() []WorkspaceFolder {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]WorkspaceFolder, len(f.folders))
	copy(out, f.folders)
	return out
}

// Contains reports whether a folder with the URI is present.
func (f *FolderSet) Contains(uri DocumentURI) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.indexOf(uri) >= 0
}

// Len returns the number of folders.
func (f *FolderSet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.folders)
}

func (f *FolderSet) indexOf(uri DocumentURI) int {
	for i, folder := range f.folders {
		if folder.URI == uri {
			return i
		}
	}
	return -1
}

// add appends without notification. Used only while seeding the set
// before initialization.
func (f *FolderSet) add(folder WorkspaceFolder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexOf(folder.URI) >= 0 {
		return
	}
	f.folders = append(f.folders, folder)
}

func (f *FolderSet) remove(uri DocumentURI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexOf(uri); i >= 0 {
		f.folders = append(f.folders[:i], f.folders[i+1:]...)
	}
}

// AddWorkspaceFolder validates, notifies the server, and only then adds
// the folder locally. A duplicate is rejected before anything is sent.
func (c *Client) AddWorkspaceFolder(path string) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatWorkspaceFolders); err != nil {
		return err
	}

	folder := folderFromPath(path)
	if c.folders.Contains(folder.URI) {
		err := errors.Mark(errors.Newf("%s is already a workspace folder", path), ErrFolderExists)
		c.hooks.showMessage(err.Error())
		return err
	}

	err := c.Notify("workspace/didChangeWorkspaceFolders", DidChangeWorkspaceFoldersParams{
		Event: WorkspaceFoldersChangeEvent{Added: []WorkspaceFolder{folder}},
	})
	if err != nil {
		return errors.Wrap(err, "notify folder add")
	}

	c.folders.add(folder)
	return nil
}

// RemoveWorkspaceFolder validates, notifies the server, and only then
// removes the folder locally. Removing an absent folder is rejected
// before anything is sent.
func (c *Client) RemoveWorkspaceFolder(path string) error {
	if err := c.ensureReady(); err != nil {
		return err
	}
	if err := c.require(FeatWorkspaceFolders); err != nil {
		return err
	}

	folder := folderFromPath(path)
	if !c.folders.Contains(folder.URI) {
		err := errors.Mark(errors.Newf("%s is not a workspace folder", path), ErrFolderUnknown)
		c.hooks.showMessage(err.Error())
		return err
	}

	err := c.Notify("workspace/didChangeWorkspaceFolders", DidChangeWorkspaceFoldersParams{
		Event: WorkspaceFoldersChangeEvent{Removed: []WorkspaceFolder{folder}},
	})
	if err != nil {
		return errors.Wrap(err, "notify folder remove")
	}

	c.folders.remove(folder.URI)
	return nil
}

// WorkspaceFolders returns the current folder set in order.
func (c *Client) WorkspaceFolders() []WorkspaceFolder {
	return c.folders.All()
}
