package lsp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/dshills/lspcore/internal/process"
)

// Lifecycle timing. The startup grace compensates for slow analyzer
// start; shutdown waits a bounded interval for voluntary exit before
// killing.
const (
	startupGrace     = 200 * time.Millisecond
	stopPollInterval = 2 * time.Millisecond
	stopCeiling      = 2 * time.Second
)

// clientName and clientVersion identify this engine to servers.
const (
	clientName    = "lspcore"
	clientVersion = "0.1.0"
)

// Config describes one analyzer connection.
type Config struct {
	// Command is the server executable path.
	Command string
	// Args are the launch arguments.
	Args []string
	// Dir is the child's working directory; defaults to the root path.
	Dir string
	// Env is extra environment (KEY=VALUE) for the child.
	Env []string

	// RootPath is the project root sent during initialization.
	RootPath string
	// WorkspaceFolders seeds the folder set; RootPath is used when empty.
	WorkspaceFolders []string

	// InitOptions are caller-supplied initialization options, merged into
	// the initialize payload by dotted path.
	InitOptions map[string]any

	// SyncInit makes Start block until initialization completes.
	SyncInit bool
	// CallTimeout bounds synchronous calls; zero means the 5 second
	// default.
	CallTimeout time.Duration
	// SyncMode forces the async catalog operations to block until
	// resolved. Meant for deterministic tests.
	SyncMode bool

	// Logger receives engine logs; nil means silent.
	Logger *zap.Logger
	// Hooks are the collaborator callbacks.
	Hooks Hooks
}

// Client is the aggregate state of one connection to an analyzer
// process: process handle, transport, request registry, negotiated
// capabilities, document sync table and workspace folder set. Each
// connection is an independently constructed value owned by whoever
// created it; a stopped client is not restartable.
type Client struct {
	cfg   Config
	log   *zap.Logger
	hooks Hooks

	proc      *process.Proc
	transport *Transport
	registry  *Registry
	docs      *DocumentStore
	folders   *FolderSet

	running  atomic.Bool
	ready    atomic.Bool
	syncMode atomic.Bool

	mu           sync.RWMutex
	capabilities *CapabilitySet
	serverInfo   *ServerInfo

	diagMu      sync.RWMutex
	diagnostics map[DocumentURI][]Diagnostic

	selMu      sync.Mutex
	selections map[DocumentURI]*selectionState

	closeOnce sync.Once
}

// New creates a client for the given configuration. The connection is not
// started.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		cfg:         cfg,
		log:         log.Named("lsp"),
		hooks:       cfg.Hooks,
		registry:    NewRegistry(),
		docs:        NewDocumentStore(),
		folders:     NewFolderSet(),
		diagnostics: make(map[DocumentURI][]Diagnostic),
		selections:  make(map[DocumentURI]*selectionState),
	}
	c.syncMode.Store(cfg.SyncMode)

	folders := cfg.WorkspaceFolders
	if len(folders) == 0 && cfg.RootPath != "" {
		folders = []string{cfg.RootPath}
	}
	for _, f := range folders {
		c.folders.add(folderFromPath(f))
	}

	return c
}

// Start spawns the analyzer, wires the transport, waits the startup grace
// and performs the initialize handshake. With SyncInit unset the
// handshake runs in the background and the handle becomes ready once it
// completes.
func (c *Client) Start() error {
	if c.running.Load() {
		return ErrAlreadyRunning
	}

	dir := c.cfg.Dir
	if dir == "" {
		dir = c.cfg.RootPath
	}

	opts := []process.Option{}
	if dir != "" {
		opts = append(opts, process.WithDir(dir))
	}
	if len(c.cfg.Env) > 0 {
		opts = append(opts, process.WithEnv(c.cfg.Env))
	}

	proc, err := process.Spawn(c.cfg.Command, c.cfg.Args, opts...)
	if err != nil {
		return errors.Mark(err, ErrLaunchFailed)
	}
	c.proc = proc

	c.transport = NewTransport(proc.Stdout, proc.Stdin, c.log)
	c.transport.onResponse = c.handleResponse
	c.transport.onNotification = c.routeNotification
	c.transport.onRequest = c.routeServerRequest
	c.transport.Start()

	// The flag goes up before the exit watcher starts, so a teardown
	// triggered by an early exit always observes it and its clear is final.
	c.running.Store(true)
	go c.drainStderr()
	go c.watchExit()

	// Grace delay for slow process start before the connection is usable.
	time.Sleep(startupGrace)
	if !c.running.Load() {
		return errors.Mark(errors.Newf("%s exited during startup", c.serverName()), ErrLaunchFailed)
	}

	c.log.Info("language server started",
		zap.String("command", c.cfg.Command),
		zap.String("proc", proc.ID),
		zap.Int("pid", proc.PID()),
	)

	if c.cfg.SyncInit {
		return c.initialize()
	}
	go func() {
		if err := c.initialize(); err != nil {
			c.log.Error("initialization failed", zap.Error(err))
		}
	}()
	return nil
}

// initialize performs capability negotiation and marks the handle ready.
func (c *Client) initialize() error {
	params := InitializeParams{
		ProcessID:        os.Getpid(),
		ClientInfo:       &ClientInfo{Name: clientName, Version: clientVersion},
		Capabilities:     defaultClientCapabilities(),
		WorkspaceFolders: c.folders.All(),
	}
	if c.cfg.RootPath != "" {
		params.RootPath = c.cfg.RootPath
		params.RootURI = FilePathToURI(c.cfg.RootPath)
	}

	initOpts, err := mergeInitOptions(c.cfg.InitOptions)
	if err != nil {
		return errors.Wrap(err, "initialization options")
	}
	params.InitializationOptions = initOpts

	raw, err := c.Call("initialize", params)
	if err != nil {
		return errors.Wrap(err, "initialize request")
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return errors.Wrap(err, "initialize result")
	}

	c.mu.Lock()
	c.capabilities = NewCapabilitySet(result.Capabilities)
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	if err := c.Notify("initialized", struct{}{}); err != nil {
		return errors.Wrap(err, "initialized notification")
	}

	c.ready.Store(true)
	c.log.Info("language server ready", zap.String("server", c.serverName()))
	return nil
}

// mergeInitOptions renders caller options as a JSON object, supporting
// dotted keys for nested paths.
func mergeInitOptions(opts map[string]any) (json.RawMessage, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	doc := []byte(`{}`)
	for path, value := range opts {
		var err error
		doc, err = sjson.SetBytes(doc, path, value)
		if err != nil {
			return nil, errors.Wrapf(err, "option %q", path)
		}
	}
	return doc, nil
}

// Stop shuts the connection down: shutdown request, exit notification, a
// bounded wait for voluntary termination, then a kill. Idempotent.
func (c *Client) Stop() error {
	if c.proc == nil {
		return nil
	}

	if c.running.Load() && !c.transport.IsClosed() {
		// Fire-and-forget; a dying server may never answer.
		if _, err := c.CallAsync("shutdown", nil, nil); err != nil {
			c.log.Debug("shutdown request not sent", zap.Error(err))
		}
		if err := c.Notify("exit", nil); err != nil {
			c.log.Debug("exit notification not sent", zap.Error(err))
		}
	}

	deadline := time.Now().Add(stopCeiling)
	for c.proc.Running() && time.Now().Before(deadline) {
		time.Sleep(stopPollInterval)
	}
	if c.proc.Running() {
		c.log.Warn("language server did not exit, killing", zap.Int("pid", c.proc.PID()))
		if err := c.proc.Kill(); err != nil {
			c.log.Error("kill failed", zap.Error(err))
		}
	}

	c.teardown(errors.Mark(errors.New("connection stopped"), ErrServerCrashed))
	return nil
}

// watchExit observes spontaneous process exit. Flipping the flags and
// discarding pending requests is a hard requirement: a hung pending
// request would stall every later synchronous call sharing the registry.
func (c *Client) watchExit() {
	<-c.proc.Done()

	code := c.proc.ExitCode()
	if c.running.Load() {
		c.log.Warn("language server exited",
			zap.String("server", c.serverName()),
			zap.Int("code", code),
		)
	}

	c.teardown(errors.Mark(errors.Newf("%s exited with code %d", c.serverName(), code), ErrServerCrashed))
}

// teardown closes the transport, clears flags and discards every pending
// request exactly once.
func (c *Client) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.running.Store(false)
		c.ready.Store(false)
		if c.transport != nil {
			c.transport.Close()
		}
		if c.proc != nil {
			c.proc.CloseStreams()
		}
		c.registry.DiscardAll(cause)
	})
}

// drainStderr forwards the analyzer's diagnostic stream to the log.
func (c *Client) drainStderr() {
	buf := make([]byte, 4096)
	for {
		n, err := c.proc.Stderr.Read(buf)
		if n > 0 {
			c.log.Debug("server stderr", zap.ByteString("output", buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// routeNotification caches diagnostics and forwards everything else to
// the message-dispatch collaborator.
func (c *Client) routeNotification(method string, params json.RawMessage) {
	if method == "textDocument/publishDiagnostics" {
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.log.Debug("bad publishDiagnostics payload", zap.Error(err))
			return
		}
		c.diagMu.Lock()
		if len(p.Diagnostics) == 0 {
			delete(c.diagnostics, p.URI)
		} else {
			c.diagnostics[p.URI] = p.Diagnostics
		}
		c.diagMu.Unlock()

		go c.hooks.onDiagnostics(p.URI, p.Diagnostics)
		return
	}

	go c.hooks.onNotification(method, params)
}

// routeServerRequest answers a server-initiated request through the hook,
// or with MethodNotFound when no collaborator is installed.
func (c *Client) routeServerRequest(id json.RawMessage, method string, params json.RawMessage) {
	go func() {
		if c.hooks.OnServerRequest == nil {
			_ = c.Respond(id, nil, &RPCError{Code: CodeMethodNotFound, Message: "unhandled method " + method})
			return
		}
		result, rpcErr := c.hooks.OnServerRequest(method, params)
		_ = c.Respond(id, result, rpcErr)
	}()
}

// ensureReady gates catalog operations on a negotiated connection.
func (c *Client) ensureReady() error {
	if !c.running.Load() || !c.ready.Load() {
		return errors.Mark(errors.Newf("%s is not ready", c.serverName()), ErrNotReady)
	}
	return nil
}

// --- Accessors ---

// Running reports whether the process is believed alive.
func (c *Client) Running() bool {
	return c.running.Load()
}

// Ready reports whether initialization has completed.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// SyncMode reports whether async operations currently block.
func (c *Client) SyncMode() bool {
	return c.syncMode.Load()
}

// SetSyncMode toggles deterministic blocking for async operations.
func (c *Client) SetSyncMode(on bool) {
	c.syncMode.Store(on)
}

// Capabilities returns the negotiated capability set, nil before ready.
func (c *Client) Capabilities() *CapabilitySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// caps is the internal nil-safe accessor the gate uses.
func (c *Client) caps() *CapabilitySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// ServerInfo returns the server's self-description, if it sent one.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// serverName returns a display name for messages: the server's declared
// name, else the executable's base name.
func (c *Client) serverName() string {
	c.mu.RLock()
	info := c.serverInfo
	c.mu.RUnlock()
	if info != nil && info.Name != "" {
		return info.Name
	}
	return filepath.Base(c.cfg.Command)
}

// Diagnostics returns the cached diagnostics for a document.
func (c *Client) Diagnostics(uri DocumentURI) []Diagnostic {
	c.diagMu.RLock()
	defer c.diagMu.RUnlock()
	return c.diagnostics[uri]
}

// AllDiagnostics returns every cached diagnostic set keyed by URI.
func (c *Client) AllDiagnostics() map[DocumentURI][]Diagnostic {
	c.diagMu.RLock()
	defer c.diagMu.RUnlock()
	out := make(map[DocumentURI][]Diagnostic, len(c.diagnostics))
	for uri, diags := range c.diagnostics {
		out[uri] = diags
	}
	return out
}

// PendingRequests reports how many requests await responses.
func (c *Client) PendingRequests() int {
	return c.registry.Len()
}

// folderFromPath builds a WorkspaceFolder from a directory path.
func folderFromPath(path string) WorkspaceFolder {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return WorkspaceFolder{URI: FilePathToURI(abs), Name: filepath.Base(abs)}
}
