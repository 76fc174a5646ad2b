package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Transport frames JSON-RPC 2.0 envelopes over the analyzer's stdio using
// the LSP base protocol (Content-Length headers, UTF-8 bodies).
//
// Outbound sends on a closed transport are dropped silently: a closed
// channel only happens after the server has exited, and the caller is
// expected to observe that through the handle's state. Inbound messages
// are classified purely by shape (an id plus result or error is a
// response, a method plus id is a server request, a method alone is a
// notification) and handed to the callbacks installed before Start.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	log    *zap.Logger

	// onResponse receives decoded responses for id correlation.
	onResponse func(*Response)
	// onRequest receives server-initiated requests.
	onRequest func(id json.RawMessage, method string, params json.RawMessage)
	// onNotification receives server notifications.
	onNotification func(method string, params json.RawMessage)

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
	sent    atomic.Uint64
}

// NewTransport creates a transport over the given streams. Callbacks must
// be installed before Start.
func NewTransport(r io.Reader, w io.Writer, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		reader: bufio.NewReaderSize(r, 64*1024),
		writer: w,
		log:    log,
		done:   make(chan struct{}),
	}
}

// Start begins the read loop in its own goroutine so inbound delivery
// stays live while callers block in synchronous calls.
func (t *Transport) Start() {
	go t.readLoop()
}

// Close marks the transport closed and stops the read loop. Idempotent.
func (t *Transport) Close() {
	if t.closed.Swap(true) {
		return
	}
	close(t.done)
}

// IsClosed reports whether the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Sent returns the number of envelopes successfully written.
func (t *Transport) Sent() uint64 {
	return t.sent.Load()
}

// SendRequest writes a request or notification envelope.
func (t *Transport) SendRequest(req *Request) error {
	return t.send(req)
}

// SendReply writes a response envelope for a server-initiated request.
func (t *Transport) SendReply(id json.RawMessage, result any, rpcErr *RPCError) error {
	return t.send(&reply{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr})
}

// send serializes msg and writes it with a Content-Length header. A
// closed transport drops the message without error.
func (t *Transport) send(msg any) error {
	if t.closed.Load() {
		t.log.Debug("dropping send on closed transport")
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	t.sent.Add(1)
	return nil
}

// readLoop reads framed messages until EOF or Close.
func (t *Transport) readLoop() {
	for {
		select {
		case <-t.done:
			return
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() || err == io.EOF || err == io.ErrClosedPipe {
				return
			}
			t.log.Debug("read error, skipping message", zap.Error(err))
			continue
		}

		t.dispatch(msg)
	}
}

// readMessage reads one header block and body.
func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
					contentLength = n
				}
			}
		}
	}

	if contentLength <= 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// dispatch classifies a decoded message and routes it.
func (t *Transport) dispatch(data json.RawMessage) {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		t.log.Debug("unparseable message dropped", zap.Error(err))
		return
	}

	hasID := len(probe.ID) > 0 && string(probe.ID) != "null"

	switch {
	case hasID && probe.Method == "":
		// Response: id present, no method.
		if t.onResponse != nil {
			t.onResponse(&Response{
				JSONRPC: "2.0",
				ID:      probe.ID,
				Result:  probe.Result,
				Error:   probe.Error,
			})
		}
	case hasID:
		// Server-initiated request.
		if t.onRequest != nil {
			t.onRequest(probe.ID, probe.Method, probe.Params)
		}
	case probe.Method != "":
		// Notification.
		if t.onNotification != nil {
			t.onNotification(probe.Method, probe.Params)
		}
	default:
		t.log.Debug("message with neither id nor method dropped")
	}
}
