package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Failure taxonomy for the engine. Every error returned by this package
// is marked with exactly one of these sentinels so callers can classify
// with errors.Is without string matching.
var (
	// ErrLaunchFailed indicates the analyzer process could not be started.
	// Fatal to the connection attempt; the handle never becomes ready.
	ErrLaunchFailed = errors.New("language server failed to launch")

	// ErrTransportClosed indicates a send was attempted on a closed channel.
	// Sends in this state are dropped silently; the sentinel exists for the
	// few callers that need to distinguish "never sent" from "sent".
	ErrTransportClosed = errors.New("transport closed")

	// ErrUnsupported indicates the negotiated capability set does not cover
	// the requested operation. Non-fatal; the operation is skipped.
	ErrUnsupported = errors.New("operation not supported by server")

	// ErrEmptyResult indicates the server replied successfully with a null
	// or empty payload. Treated as "nothing found", not as a failure.
	ErrEmptyResult = errors.New("empty result")

	// ErrTimeout indicates a synchronous call exceeded its wait ceiling.
	// The pending entry stays registered until connection teardown.
	ErrTimeout = errors.New("request timed out")

	// ErrServerCrashed indicates the analyzer process exited while requests
	// were outstanding.
	ErrServerCrashed = errors.New("language server exited")

	// ErrNotReady indicates the connection has not completed initialization.
	ErrNotReady = errors.New("connection not ready")

	// ErrAlreadyRunning indicates Start was called on a live handle.
	ErrAlreadyRunning = errors.New("language server already running")

	// ErrDocumentOpen indicates didOpen for a document already tracked.
	ErrDocumentOpen = errors.New("document already open")

	// ErrDocumentNotOpen indicates an operation on an untracked document.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrFolderExists indicates a duplicate workspace folder add.
	ErrFolderExists = errors.New("workspace folder already present")

	// ErrFolderUnknown indicates removal of an absent workspace folder.
	ErrFolderUnknown = errors.New("workspace folder not present")
)

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC and LSP error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeUnknownErrorCode     = -32001
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeServerCancelled      = -32802
	CodeRequestFailed        = -32803
)

// remoteError wraps a server error reply so callers can classify it and
// still reach the code/message/data through errors.As.
func remoteError(method string, rpcErr *RPCError) error {
	return errors.Wrapf(rpcErr, "%s failed", method)
}
