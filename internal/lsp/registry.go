package lsp

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Continuation is invoked when the response for an asynchronous call
// arrives. Exactly one of result and rpcErr is meaningful; a nil rpcErr
// with a nil result means the server returned an empty payload.
type Continuation func(result json.RawMessage, rpcErr *RPCError)

// resolution is what a synchronous caller receives when its pending entry
// resolves. err is non-nil only for local failures (teardown, crash).
type resolution struct {
	resp *Response
	err  error
}

// PendingRequest is a request that has been sent but not yet answered.
//
// Exactly one of done and cont is set: done for synchronous calls, cont
// for asynchronous ones. An entry is removed at most once, either when a
// matching response arrives or when the registry is torn down; a call
// that times out deliberately leaves its entry behind.
type PendingRequest struct {
	ID      int64
	Method  string
	Params  any
	Created time.Time

	done chan resolution
	cont Continuation
}

// Registry issues request ids and correlates responses with pending
// requests. Ids are strictly increasing from 1 and never reused for the
// lifetime of a connection. All access is mutex-serialized; synchronous
// and asynchronous entries share the same map without interference.
type Registry struct {
	mu      sync.Mutex
	nextID  int64
	pending map[string]*PendingRequest
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*PendingRequest)}
}

// NextID returns the next request id. The first id is 1.
func (r *Registry) NextID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Register stores a pending request keyed by the string form of its id.
func (r *Registry) Register(req *PendingRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[strconv.FormatInt(req.ID, 10)] = req
}

// Resolve removes and returns the pending request for a raw response id.
// An unknown id is a defensive no-op: a slow server may echo an id after
// local teardown, and that must not disturb anything.
func (r *Registry) Resolve(rawID json.RawMessage) (*PendingRequest, bool) {
	key := idKey(rawID)
	if key == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.pending[key]
	if !ok {
		return nil, false
	}
	delete(r.pending, key)
	return req, true
}

// Has reports whether an id is still pending.
func (r *Registry) Has(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[strconv.FormatInt(id, 10)]
	return ok
}

// Len returns the number of pending requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// DiscardAll removes every pending request, waking synchronous waiters
// with err. Called on process exit and connection teardown; a request
// whose process has died can never be resolved, and leaving it pending
// would stall every later synchronous call.
func (r *Registry) DiscardAll(err error) {
	r.mu.Lock()
	dropped := r.pending
	r.pending = make(map[string]*PendingRequest)
	r.mu.Unlock()

	for _, req := range dropped {
		if req.done != nil {
			select {
			case req.done <- resolution{err: err}:
			default:
			}
		}
	}
}

// idKey normalizes a raw JSON response id to the registry's string form.
// Numeric and string ids map to the same key so servers that echo numbers
// as strings still match.
func idKey(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
