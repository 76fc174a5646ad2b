// Package lsp implements a Language Server Protocol client engine.
//
// The package speaks JSON-RPC 2.0 over a spawned server's stdio, manages the
// server lifecycle, negotiates capabilities, and exposes the standard
// editor-facing operations (navigation, completion, formatting, rename,
// symbols, call hierarchy, folding, selection ranges).
//
// # Architecture
//
//   - Client: server lifecycle, initialization handshake, and the operation
//     catalog
//   - Transport: Content-Length framing and message classification over the
//     server's stdin/stdout
//   - Registry: pending request bookkeeping keyed by request id
//   - DocumentStore: open-document tracking with monotonically increasing
//     versions
//   - Hooks: collaborator callbacks for everything user-visible (messages,
//     diagnostics, applying edits, showing locations)
//
// # Quick Start
//
//	client := lsp.New(lsp.Config{
//	    Command:  "gopls",
//	    Args:     []string{"serve"},
//	    RootPath: "/path/to/project",
//	})
//	if err := client.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop()
//
//	client.DidOpen(uri, "go", content)
//	locs, err := client.GotoDefinition(uri, lsp.Position{Line: 10, Character: 5}, false)
//
// # Capability Gating
//
// Every feature-specific operation checks the server's advertised
// capabilities before anything reaches the wire. Unsupported features fail
// fast with ErrUnsupported and a user-facing message.
//
// # Request Modes
//
// Navigation, formatting, rename, and symbol queries block with a bounded
// wait. Completion, hover, and other latency-sensitive requests run
// asynchronously and deliver results through continuations. SetSyncMode
// forces the asynchronous family to resolve inline, which makes tests
// deterministic.
//
// # Thread Safety
//
// Client is safe for concurrent use. Continuations run on their own
// goroutines, never on the transport read loop.
package lsp
