package lsp

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

// fakeServer speaks the framed protocol on the far side of a pipe pair.
// Requests go through handle; notifications are recorded.
type fakeServer struct {
	in  *bufio.Reader
	out io.Writer

	// handle produces the result or error for each inbound request.
	handle func(method string, params json.RawMessage) (any, *RPCError)

	mu       sync.Mutex
	notified []string
	replies  chan []byte
}

func (s *fakeServer) run() {
	for {
		body, err := s.readFrame()
		if err != nil {
			return
		}

		var probe struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if json.Unmarshal(body, &probe) != nil {
			continue
		}

		hasID := len(probe.ID) > 0 && string(probe.ID) != "null"
		switch {
		case hasID && probe.Method != "":
			var result any
			var rpcErr *RPCError
			if s.handle != nil {
				result, rpcErr = s.handle(probe.Method, probe.Params)
			}
			if rpcErr == nil && result == nil {
				result = json.RawMessage("null")
			}
			resp, _ := json.Marshal(map[string]any{
				"jsonrpc": "2.0", "id": json.RawMessage(probe.ID), "result": result, "error": rpcErr,
			})
			writeFrame(s.out, resp)
		case probe.Method != "":
			s.mu.Lock()
			s.notified = append(s.notified, probe.Method)
			s.mu.Unlock()
		case hasID:
			// A reply to a request this server initiated.
			select {
			case s.replies <- body:
			default:
			}
		}
	}
}

func (s *fakeServer) readFrame() ([]byte, error) {
	var contentLength int
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			contentLength, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.in, body); err != nil {
		return nil, err
	}
	return body, nil
}

// notifications returns the methods of recorded notifications.
func (s *fakeServer) notifications() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.notified))
	copy(out, s.notified)
	return out
}

// notificationCount counts recorded notifications for a method.
func (s *fakeServer) notificationCount(method string) int {
	n := 0
	for _, m := range s.notifications() {
		if m == method {
			n++
		}
	}
	return n
}

// waitNotification polls until a notification for method arrives.
func (s *fakeServer) waitNotification(t *testing.T, method string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.notificationCount(method) > 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("notification %s never arrived; got %v", method, s.notifications())
}

// newTestClient wires a ready client to a fake server over in-memory
// pipes, skipping process spawn and the initialize handshake.
func newTestClient(t *testing.T, caps string, handle func(method string, params json.RawMessage) (any, *RPCError)) (*Client, *fakeServer) {
	t.Helper()

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	srv := &fakeServer{in: bufio.NewReader(serverIn), out: serverOut, handle: handle, replies: make(chan []byte, 4)}
	go srv.run()

	c := New(Config{Command: "fakeserver"})
	c.transport = NewTransport(clientIn, clientOut, c.log)
	c.transport.onResponse = c.handleResponse
	c.transport.onNotification = c.routeNotification
	c.transport.onRequest = c.routeServerRequest
	c.transport.Start()

	c.running.Store(true)
	c.ready.Store(true)
	c.capabilities = NewCapabilitySet(json.RawMessage(caps))

	t.Cleanup(func() {
		c.transport.Close()
		clientOut.Close()
		serverOut.Close()
	})
	return c, srv
}

const fullCaps = `{
	"textDocumentSync": {"openClose": true, "change": 1, "save": true},
	"definitionProvider": true,
	"declarationProvider": true,
	"typeDefinitionProvider": true,
	"implementationProvider": true,
	"referencesProvider": true,
	"hoverProvider": true,
	"completionProvider": {"resolveProvider": true},
	"signatureHelpProvider": {},
	"documentHighlightProvider": true,
	"documentSymbolProvider": true,
	"workspaceSymbolProvider": true,
	"codeActionProvider": true,
	"documentFormattingProvider": true,
	"documentRangeFormattingProvider": true,
	"renameProvider": true,
	"callHierarchyProvider": true,
	"foldingRangeProvider": true,
	"selectionRangeProvider": true,
	"workspace": {"workspaceFolders": {"supported": true}}
}`

func TestClient_SyncCallResolves(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		if method != "workspace/symbol" {
			t.Errorf("unexpected method %q", method)
		}
		return []SymbolInformation{{Name: "Widget"}}, nil
	})

	raw, err := c.Call("workspace/symbol", WorkspaceSymbolParams{Query: "Widget"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	var syms []SymbolInformation
	if err := json.Unmarshal(raw, &syms); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "Widget" {
		t.Errorf("result = %+v", syms)
	}
	if c.PendingRequests() != 0 {
		t.Errorf("PendingRequests() = %d after resolution", c.PendingRequests())
	}
}

func TestClient_SyncCallRemoteError(t *testing.T) {
	var messages []string
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return nil, &RPCError{Code: CodeInvalidRequest, Message: "bad params"}
	})
	c.hooks.ShowMessage = func(msg string) { messages = append(messages, msg) }

	raw, err := c.Call("textDocument/rename", nil)
	if err == nil {
		t.Fatal("Call() returned nil error for an error reply")
	}
	if raw != nil {
		t.Errorf("result should be nil on remote error, got %s", raw)
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInvalidRequest {
		t.Errorf("error does not wrap the RPC error: %v", err)
	}
	if len(messages) == 0 {
		t.Error("remote error was not reported through the message hook")
	}
}

func TestClient_CallAsyncContinuation(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, func(method string, params json.RawMessage) (any, *RPCError) {
		return map[string]string{"contents": "doc"}, nil
	})

	got := make(chan json.RawMessage, 1)
	id, err := c.CallAsync("textDocument/hover", nil, func(result json.RawMessage, rpcErr *RPCError) {
		got <- result
	})
	if err != nil {
		t.Fatalf("CallAsync() error = %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}

	select {
	case result := <-got:
		if !strings.Contains(string(result), "doc") {
			t.Errorf("continuation result = %s", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran")
	}
}

func TestClient_CallAsyncClosedTransport(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, nil)
	c.transport.Close()

	_, err := c.CallAsync("textDocument/hover", nil, func(json.RawMessage, *RPCError) {})
	if !errors.Is(err, ErrTransportClosed) {
		t.Errorf("error = %v, want ErrTransportClosed", err)
	}
	if c.PendingRequests() != 0 {
		t.Errorf("closed-transport send left a pending entry")
	}
}

func TestClient_TeardownDiscardsPending(t *testing.T) {
	// Responses are dropped on the floor, so the sync call parks until
	// teardown.
	c, _ := newTestClient(t, fullCaps, nil)
	c.transport.onResponse = func(*Response) {}

	callErr := make(chan error, 1)
	go func() {
		_, err := c.Call("textDocument/references", nil)
		callErr <- err
	}()

	// Wait for the request to register, then simulate a crash.
	deadline := time.Now().Add(2 * time.Second)
	for c.PendingRequests() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if c.PendingRequests() == 0 {
		t.Fatal("request never registered")
	}

	c.teardown(errors.Mark(errors.New("process exited"), ErrServerCrashed))

	select {
	case err := <-callErr:
		if !errors.Is(err, ErrServerCrashed) {
			t.Errorf("parked call woke with %v, want ErrServerCrashed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("parked call was not woken by teardown")
	}

	if c.Running() || c.Ready() {
		t.Error("flags still set after teardown")
	}
	if c.PendingRequests() != 0 {
		t.Errorf("PendingRequests() = %d after teardown", c.PendingRequests())
	}

	// Every later send is a silent no-op.
	if err := c.Notify("textDocument/didChange", nil); err != nil {
		t.Errorf("post-teardown Notify() error = %v", err)
	}
}

func TestClient_SyncCallTimeout(t *testing.T) {
	// Responses are dropped on the floor, so the call can only end at the
	// wait ceiling. The abandoned entry stays registered until teardown.
	c, _ := newTestClient(t, fullCaps, nil)
	c.transport.onResponse = func(*Response) {}
	c.cfg.CallTimeout = 30 * time.Millisecond

	_, err := c.Call("textDocument/hover", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Call() error = %v, want ErrTimeout", err)
	}
	if c.PendingRequests() != 1 {
		t.Errorf("PendingRequests() = %d after timeout, want 1", c.PendingRequests())
	}

	c.teardown(errors.Mark(errors.New("connection stopped"), ErrServerCrashed))
	if c.PendingRequests() != 0 {
		t.Errorf("PendingRequests() = %d after teardown", c.PendingRequests())
	}
}

func TestClient_StartExitDuringStartup(t *testing.T) {
	// A server that dies while Start is still waiting out the startup
	// grace must leave the handle stopped for good; the exit teardown's
	// flag clear is final.
	c := New(Config{Command: "true"})
	t.Cleanup(func() { _ = c.Stop() })

	err := c.Start()
	if err != nil && !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("Start() error = %v, want ErrLaunchFailed", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Running() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if c.Running() {
		t.Fatal("Running() = true after the process exited")
	}

	// Nothing re-raises the flags afterwards.
	time.Sleep(50 * time.Millisecond)
	if c.Running() || c.Ready() {
		t.Error("flags came back up after the exit teardown")
	}
	if c.PendingRequests() != 0 {
		t.Errorf("PendingRequests() = %d", c.PendingRequests())
	}
}

func TestClient_GatedOperationNeverSent(t *testing.T) {
	var messages []string
	c, _ := newTestClient(t, `{"hoverProvider": true}`, nil)
	c.hooks.ShowMessage = func(msg string) { messages = append(messages, msg) }

	before := c.transport.Sent()
	_, err := c.GotoDefinition("file:///main.go", Position{Line: 1}, false)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("error = %v, want ErrUnsupported", err)
	}
	if c.transport.Sent() != before {
		t.Error("gated operation reached the transport")
	}
	if len(messages) == 0 {
		t.Error("unsupported feature was not reported to the user")
	}
}

func TestClient_NotReady(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, nil)
	c.ready.Store(false)

	_, err := c.GotoDefinition("file:///main.go", Position{}, false)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestClient_DidOpenChangeClose(t *testing.T) {
	c, srv := newTestClient(t, fullCaps, nil)
	uri := DocumentURI("file:///tmp/main.go")

	if err := c.DidOpen(uri, "go", "package main\n"); err != nil {
		t.Fatalf("DidOpen() error = %v", err)
	}
	srv.waitNotification(t, "textDocument/didOpen")

	if !c.IsDocumentOpen(uri) {
		t.Error("document not tracked after DidOpen")
	}

	if err := c.DidChange(uri, "package main\n\nfunc main() {}\n", 2); err != nil {
		t.Fatalf("DidChange() error = %v", err)
	}
	srv.waitNotification(t, "textDocument/didChange")

	doc, _ := c.docs.get(uri)
	if doc.Version != 2 {
		t.Errorf("version = %d after change, want 2", doc.Version)
	}

	if err := c.DidClose(uri); err != nil {
		t.Fatalf("DidClose() error = %v", err)
	}
	srv.waitNotification(t, "textDocument/didClose")

	if c.IsDocumentOpen(uri) {
		t.Error("document still tracked after DidClose")
	}
	if err := c.DidChange(uri, "x", 3); !errors.Is(err, ErrDocumentNotOpen) {
		t.Errorf("DidChange after close = %v, want ErrDocumentNotOpen", err)
	}
}

func TestClient_DidSaveGated(t *testing.T) {
	// Numeric textDocumentSync means no save interest: didSave is skipped.
	c, srv := newTestClient(t, `{"textDocumentSync": 1}`, nil)
	uri := DocumentURI("file:///tmp/main.go")

	if err := c.DidOpen(uri, "go", ""); err != nil {
		t.Fatalf("DidOpen() error = %v", err)
	}
	srv.waitNotification(t, "textDocument/didOpen")

	if err := c.DidSave(uri); err != nil {
		t.Fatalf("DidSave() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if srv.notificationCount("textDocument/didSave") != 0 {
		t.Error("didSave was sent despite the server declaring no save interest")
	}
}

func TestClient_DiagnosticsCache(t *testing.T) {
	received := make(chan []Diagnostic, 1)
	c, _ := newTestClient(t, fullCaps, nil)
	c.hooks.OnDiagnostics = func(uri DocumentURI, diags []Diagnostic) { received <- diags }

	params, _ := json.Marshal(PublishDiagnosticsParams{
		URI: "file:///tmp/main.go",
		Diagnostics: []Diagnostic{
			{Message: "unused variable", Severity: 2},
		},
	})
	c.routeNotification("textDocument/publishDiagnostics", params)

	select {
	case diags := <-received:
		if len(diags) != 1 {
			t.Errorf("hook received %d diagnostics", len(diags))
		}
	case <-time.After(time.Second):
		t.Fatal("diagnostics hook never ran")
	}

	cached := c.Diagnostics("file:///tmp/main.go")
	if len(cached) != 1 || cached[0].Message != "unused variable" {
		t.Errorf("cache = %+v", cached)
	}

	// An empty publish clears the entry.
	empty, _ := json.Marshal(PublishDiagnosticsParams{URI: "file:///tmp/main.go"})
	c.routeNotification("textDocument/publishDiagnostics", empty)
	<-received
	if len(c.Diagnostics("file:///tmp/main.go")) != 0 {
		t.Error("empty publish did not clear the cache")
	}
}

func TestClient_ServerRequestUnhandled(t *testing.T) {
	// Without an OnServerRequest hook the engine answers MethodNotFound.
	_, srv := newTestClient(t, fullCaps, nil)

	writeFrame(srv.out, []byte(`{"jsonrpc":"2.0","id":9,"method":"workspace/configuration","params":{}}`))

	select {
	case body := <-srv.replies:
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal reply: %v", err)
		}
		if string(resp.ID) != "9" {
			t.Errorf("reply id = %s, want 9", resp.ID)
		}
		if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
			t.Errorf("reply error = %+v, want MethodNotFound", resp.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply to the server-initiated request")
	}
}

func TestClient_ServerRequestHooked(t *testing.T) {
	c, srv := newTestClient(t, fullCaps, nil)
	c.hooks.OnServerRequest = func(method string, params json.RawMessage) (any, *RPCError) {
		if method != "workspace/applyEdit" {
			return nil, &RPCError{Code: CodeMethodNotFound, Message: method}
		}
		return map[string]bool{"applied": true}, nil
	}

	writeFrame(srv.out, []byte(`{"jsonrpc":"2.0","id":4,"method":"workspace/applyEdit","params":{"edit":{}}}`))

	select {
	case body := <-srv.replies:
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal reply: %v", err)
		}
		if resp.Error != nil {
			t.Fatalf("reply error = %+v", resp.Error)
		}
		if !strings.Contains(string(resp.Result), "applied") {
			t.Errorf("reply result = %s", resp.Result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply to the hooked server request")
	}
}

func TestClient_SyncModeToggle(t *testing.T) {
	c, _ := newTestClient(t, fullCaps, nil)

	if c.SyncMode() {
		t.Error("sync mode on by default")
	}
	c.SetSyncMode(true)
	if !c.SyncMode() {
		t.Error("SetSyncMode(true) did not stick")
	}
}
