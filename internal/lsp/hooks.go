package lsp

import "encoding/json"

// Hooks are the collaborator callbacks through which the engine hands off
// everything it does not own: rendering results, applying edits, routing
// server-to-client traffic. Every field is optional; nil hooks are
// skipped. The engine never renders anything itself.
type Hooks struct {
	// ShowMessage reports a user-visible condition: an unsupported
	// feature, a "not found" outcome, or a remote error.
	ShowMessage func(msg string)

	// OnDiagnostics fires when the server publishes diagnostics for a
	// document, after the engine has updated its own cache.
	OnDiagnostics func(uri DocumentURI, diags []Diagnostic)

	// OnNotification receives every server notification other than
	// publishDiagnostics, for the message-dispatch collaborator.
	OnNotification func(method string, params json.RawMessage)

	// OnServerRequest answers a server-initiated request. The returned
	// result or error is sent back on the wire. When nil, the engine
	// replies with MethodNotFound.
	OnServerRequest func(method string, params json.RawMessage) (any, *RPCError)

	// ShowLocation jumps the editing surface to a location. recordJump
	// asks it to push the pre-jump position for back-navigation; it is
	// false for preview-only jumps.
	ShowLocation func(loc Location, recordJump bool)

	// ShowReferences presents a reference list (find references).
	ShowReferences func(locs []Location)

	// ApplyEdits applies a formatting edit list to a document. cursor,
	// when non-nil, is the caller's position to restore afterwards.
	ApplyEdits func(uri DocumentURI, edits []TextEdit, cursor *Position)

	// ApplyWorkspaceEdit applies a multi-document edit (rename).
	ApplyWorkspaceEdit func(edit *WorkspaceEdit)

	// ShowSymbols presents workspace symbol results together with the
	// original query for re-display and filtering.
	ShowSymbols func(query string, syms []SymbolInformation)

	// ChooseHierarchyItem picks among multiple prepared call-hierarchy
	// candidates. A negative return aborts; nil defaults to the first.
	ChooseHierarchyItem func(items []CallHierarchyItem) int

	// ShowIncomingCalls presents the callers of a hierarchy item.
	ShowIncomingCalls func(item CallHierarchyItem, calls []CallHierarchyIncomingCall)

	// ShowOutgoingCalls presents the callees of a hierarchy item.
	ShowOutgoingCalls func(item CallHierarchyItem, calls []CallHierarchyOutgoingCall)

	// SelectRange applies an expanded or shrunk selection.
	SelectRange func(uri DocumentURI, rng Range)
}

func (h Hooks) showMessage(msg string) {
	if h.ShowMessage != nil {
		h.ShowMessage(msg)
	}
}

func (h Hooks) onDiagnostics(uri DocumentURI, diags []Diagnostic) {
	if h.OnDiagnostics != nil {
		h.OnDiagnostics(uri, diags)
	}
}

func (h Hooks) onNotification(method string, params json.RawMessage) {
	if h.OnNotification != nil {
		h.OnNotification(method, params)
	}
}

func (h Hooks) showLocation(loc Location, recordJump bool) {
	if h.ShowLocation != nil {
		h.ShowLocation(loc, recordJump)
	}
}

func (h Hooks) showReferences(locs []Location) {
	if h.ShowReferences != nil {
		h.ShowReferences(locs)
	}
}

func (h Hooks) applyEdits(uri DocumentURI, edits []TextEdit, cursor *Position) {
	if h.ApplyEdits != nil {
		h.ApplyEdits(uri, edits, cursor)
	}
}

func (h Hooks) applyWorkspaceEdit(edit *WorkspaceEdit) {
	if h.ApplyWorkspaceEdit != nil {
		h.ApplyWorkspaceEdit(edit)
	}
}

func (h Hooks) showSymbols(query string, syms []SymbolInformation) {
	if h.ShowSymbols != nil {
		h.ShowSymbols(query, syms)
	}
}

func (h Hooks) chooseHierarchyItem(items []CallHierarchyItem) int {
	if h.ChooseHierarchyItem == nil {
		return 0
	}
	return h.ChooseHierarchyItem(items)
}

func (h Hooks) showIncomingCalls(item CallHierarchyItem, calls []CallHierarchyIncomingCall) {
	if h.ShowIncomingCalls != nil {
		h.ShowIncomingCalls(item, calls)
	}
}

func (h Hooks) showOutgoingCalls(item CallHierarchyItem, calls []CallHierarchyOutgoingCall) {
	if h.ShowOutgoingCalls != nil {
		h.ShowOutgoingCalls(item, calls)
	}
}

func (h Hooks) selectRange(uri DocumentURI, rng Range) {
	if h.SelectRange != nil {
		h.SelectRange(uri, rng)
	}
}
