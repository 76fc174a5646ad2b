package lsp

import (
	"encoding/json"
	"testing"
)

// The catalog's async operations run under sync mode here so results can
// be asserted immediately after the call returns.

func TestCompletion_SyncMode(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		if method != "textDocument/completion" {
			t.Errorf("method = %q", method)
		}
		return CompletionList{
			IsIncomplete: false,
			Items: []CompletionItem{
				{Label: "Println", Kind: 3},
				{Label: "Printf", Kind: 3},
			},
		}, nil
	})
	c.SetSyncMode(true)

	var got *CompletionList
	err := c.Completion("file:///main.go", Position{Line: 5, Character: 9}, func(list *CompletionList, rpcErr *RPCError) {
		got = list
	})
	if err != nil {
		t.Fatalf("Completion() error = %v", err)
	}
	if got == nil {
		t.Fatal("continuation had not run when Completion returned")
	}
	if len(got.Items) != 2 || got.Items[0].Label != "Println" {
		t.Errorf("items = %+v", got.Items)
	}
}

func TestCompletion_BareArrayResult(t *testing.T) {
	// Servers may return a bare item array instead of a CompletionList.
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return []CompletionItem{{Label: "Fprintf"}}, nil
	})
	c.SetSyncMode(true)

	var got *CompletionList
	err := c.Completion("file:///main.go", Position{}, func(list *CompletionList, rpcErr *RPCError) {
		got = list
	})
	if err != nil {
		t.Fatalf("Completion() error = %v", err)
	}
	if got == nil || len(got.Items) != 1 || got.Items[0].Label != "Fprintf" {
		t.Errorf("list = %+v", got)
	}
}

func TestResolveCompletion_EmptyKeepsOriginal(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		if method != "completionItem/resolve" {
			t.Errorf("method = %q", method)
		}
		return json.RawMessage("null"), nil
	})
	c.SetSyncMode(true)

	item := CompletionItem{Label: "Println", Detail: "func"}
	var got *CompletionItem
	err := c.ResolveCompletion(item, func(resolved *CompletionItem, rpcErr *RPCError) {
		got = resolved
	})
	if err != nil {
		t.Fatalf("ResolveCompletion() error = %v", err)
	}
	if got == nil || got.Label != "Println" || got.Detail != "func" {
		t.Errorf("resolved = %+v, want the original item back", got)
	}
}

func TestHover_SyncMode(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return Hover{Contents: json.RawMessage(`"func Println(a ...any)"`)}, nil
	})
	c.SetSyncMode(true)

	var got *Hover
	err := c.Hover("file:///main.go", Position{}, func(hover *Hover, rpcErr *RPCError) {
		got = hover
	})
	if err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	if got == nil || len(got.Contents) == 0 {
		t.Errorf("hover = %+v", got)
	}
}

func TestHover_Empty(t *testing.T) {
	var messages []string
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return json.RawMessage("null"), nil
	})
	c.hooks.ShowMessage = func(msg string) { messages = append(messages, msg) }
	c.SetSyncMode(true)

	ran := false
	err := c.Hover("file:///main.go", Position{}, func(hover *Hover, rpcErr *RPCError) {
		ran = true
		if hover != nil {
			t.Errorf("hover = %+v for null result", hover)
		}
	})
	if err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	if !ran {
		t.Error("continuation did not run for a null result")
	}
	if len(messages) != 1 || messages[0] != "no hover information" {
		t.Errorf("messages = %v", messages)
	}
}

func TestDocumentSymbols_SyncMode(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return []DocumentSymbol{
			{Name: "main", Kind: 12, Children: []DocumentSymbol{{Name: "x", Kind: 13}}},
		}, nil
	})
	c.SetSyncMode(true)

	var got []DocumentSymbol
	err := c.DocumentSymbols("file:///main.go", func(syms []DocumentSymbol, rpcErr *RPCError) {
		got = syms
	})
	if err != nil {
		t.Fatalf("DocumentSymbols() error = %v", err)
	}
	if len(got) != 1 || len(got[0].Children) != 1 {
		t.Errorf("symbols = %+v", got)
	}
}

func TestCodeActions_ForwardsOverlappingDiagnostics(t *testing.T) {
	var receivedContext CodeActionContext
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		var p CodeActionParams
		if err := json.Unmarshal(params, &p); err != nil {
			t.Errorf("params: %v", err)
		}
		receivedContext = p.Context
		return []CodeAction{{Title: "Remove unused variable"}}, nil
	})
	c.SetSyncMode(true)

	// Seed the diagnostics cache: one inside the range, one far away.
	uri := DocumentURI("file:///main.go")
	c.diagMu.Lock()
	c.diagnostics[uri] = []Diagnostic{
		{Range: Range{Start: Position{Line: 5}, End: Position{Line: 5}}, Message: "unused"},
		{Range: Range{Start: Position{Line: 90}, End: Position{Line: 90}}, Message: "far away"},
	}
	c.diagMu.Unlock()

	var got []CodeAction
	err := c.CodeActions(uri, Range{Start: Position{Line: 4}, End: Position{Line: 6}}, func(actions []CodeAction, rpcErr *RPCError) {
		got = actions
	})
	if err != nil {
		t.Fatalf("CodeActions() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("actions = %+v", got)
	}
	if len(receivedContext.Diagnostics) != 1 || receivedContext.Diagnostics[0].Message != "unused" {
		t.Errorf("context diagnostics = %+v, want only the overlapping one", receivedContext.Diagnostics)
	}
}

func TestFoldingRanges_SyncMode(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return []FoldingRange{{StartLine: 2, EndLine: 10, Kind: "region"}}, nil
	})
	c.SetSyncMode(true)

	var got []FoldingRange
	err := c.FoldingRanges("file:///main.go", func(ranges []FoldingRange, rpcErr *RPCError) {
		got = ranges
	})
	if err != nil {
		t.Fatalf("FoldingRanges() error = %v", err)
	}
	if len(got) != 1 || got[0].EndLine != 10 {
		t.Errorf("ranges = %+v", got)
	}
}

func TestRangesOverlap(t *testing.T) {
	tests := []struct {
		a, b Range
		want bool
	}{
		{Range{Start: Position{Line: 1}, End: Position{Line: 3}}, Range{Start: Position{Line: 2}, End: Position{Line: 4}}, true},
		{Range{Start: Position{Line: 1}, End: Position{Line: 3}}, Range{Start: Position{Line: 3}, End: Position{Line: 5}}, true},
		{Range{Start: Position{Line: 1}, End: Position{Line: 3}}, Range{Start: Position{Line: 4}, End: Position{Line: 5}}, false},
	}
	for i, tt := range tests {
		if got := rangesOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("case %d: rangesOverlap = %v, want %v", i, got, tt.want)
		}
	}
}
