package lsp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// CapabilitySet is the deeply nested capability object a server declares
// during initialization. It is stored as the raw JSON the server sent and
// queried through path lookups; a missing key or falsy leaf always means
// "unsupported", never an error. Written once, read-only thereafter.
type CapabilitySet struct {
	raw []byte
}

// NewCapabilitySet wraps a raw server capability object.
func NewCapabilitySet(raw json.RawMessage) *CapabilitySet {
	return &CapabilitySet{raw: raw}
}

// Raw returns the capability JSON as received from the server.
func (c *CapabilitySet) Raw() json.RawMessage {
	if c == nil {
		return nil
	}
	return c.raw
}

// Supports reports whether the leaf at a dotted path is present and truthy.
// Provider capabilities are commonly either a boolean or an options object;
// both count as support.
func (c *CapabilitySet) Supports(path string) bool {
	if c == nil || len(c.raw) == 0 {
		return false
	}
	v := gjson.GetBytes(c.raw, path)
	if !v.Exists() {
		return false
	}
	switch v.Type {
	case gjson.False, gjson.Null:
		return false
	default:
		return true
	}
}

// SupportsSave reports whether didSave notifications are wanted. The
// textDocumentSync capability is either a bare sync-kind number (no save
// interest) or an object whose save member is a boolean or options object.
func (c *CapabilitySet) SupportsSave() bool {
	if c == nil || len(c.raw) == 0 {
		return false
	}
	sync := gjson.GetBytes(c.raw, "textDocumentSync")
	if !sync.Exists() || !sync.IsObject() {
		return false
	}
	return c.Supports("textDocumentSync.save")
}

// Feature is one capability-gated protocol operation: the user-facing
// feature name and the capability path that must be truthy before the
// operation may be sent.
type Feature struct {
	Name string
	Path string
}

// The gated operations of the catalog. Each send site checks its Feature
// first; skipping the check risks sending requests the server will reject
// or silently ignore.
var (
	FeatDefinition        = Feature{"go to definition", "definitionProvider"}
	FeatDeclaration       = Feature{"go to declaration", "declarationProvider"}
	FeatTypeDefinition    = Feature{"go to type definition", "typeDefinitionProvider"}
	FeatImplementation    = Feature{"go to implementation", "implementationProvider"}
	FeatReferences        = Feature{"find references", "referencesProvider"}
	FeatHover             = Feature{"hover", "hoverProvider"}
	FeatCompletion        = Feature{"completion", "completionProvider"}
	FeatCompletionResolve = Feature{"completion item resolve", "completionProvider.resolveProvider"}
	FeatSignatureHelp     = Feature{"signature help", "signatureHelpProvider"}
	FeatHighlight         = Feature{"document highlight", "documentHighlightProvider"}
	FeatDocumentSymbol    = Feature{"document symbols", "documentSymbolProvider"}
	FeatWorkspaceSymbol   = Feature{"workspace symbol search", "workspaceSymbolProvider"}
	FeatCodeAction        = Feature{"code actions", "codeActionProvider"}
	FeatFormatting        = Feature{"document formatting", "documentFormattingProvider"}
	FeatRangeFormatting   = Feature{"range formatting", "documentRangeFormattingProvider"}
	FeatRename            = Feature{"rename", "renameProvider"}
	FeatCallHierarchy     = Feature{"call hierarchy", "callHierarchyProvider"}
	FeatFoldingRange      = Feature{"folding ranges", "foldingRangeProvider"}
	FeatSelectionRange    = Feature{"selection ranges", "selectionRangeProvider"}
	FeatWorkspaceFolders  = Feature{"workspace folders", "workspace.workspaceFolders.supported"}
)

// require returns an ErrUnsupported-marked error naming the feature when
// the negotiated capability set does not cover it, after reporting the
// condition to the user. The operation must not reach the transport.
func (c *Client) require(f Feature) error {
	if c.caps().Supports(f.Path) {
		return nil
	}
	err := errors.Mark(errors.Newf("%s is not supported by %s", f.Name, c.serverName()), ErrUnsupported)
	c.hooks.showMessage(err.Error())
	return err
}

// defaultClientCapabilities is the fixed capability declaration sent in
// every initialize request: workspace folder and apply-edit support,
// completion item detail/documentation/snippet/kind range, hover content
// formats, and hierarchical document symbols.
func defaultClientCapabilities() json.RawMessage {
	caps := map[string]any{
		"workspace": map[string]any{
			"workspaceFolders": true,
			"applyEdit":        true,
			"workspaceEdit": map[string]any{
				"documentChanges": true,
			},
			"symbol": map[string]any{
				"dynamicRegistration": false,
			},
		},
		"textDocument": map[string]any{
			"completion": map[string]any{
				"completionItem": map[string]any{
					"documentationFormat": []string{"plaintext", "markdown"},
					"resolveSupport": map[string]any{
						"properties": []string{"detail", "documentation"},
					},
					"snippetSupport": true,
				},
				"completionItemKind": map[string]any{
					"valueSet": completionKindRange(),
				},
			},
			"hover": map[string]any{
				"contentFormat": []string{"plaintext", "markdown"},
			},
			"documentSymbol": map[string]any{
				"hierarchicalDocumentSymbolSupport": true,
			},
			"synchronization": map[string]any{
				"didSave": true,
			},
		},
	}
	data, _ := json.Marshal(caps)
	return data
}

// completionKindRange enumerates CompletionItemKind 1..25.
func completionKindRange() []int {
	kinds := make([]int, 25)
	for i := range kinds {
		kinds[i] = i + 1
	}
	return kinds
}
