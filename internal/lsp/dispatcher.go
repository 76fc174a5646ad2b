package lsp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Synchronous-call wait parameters. The reference behavior polls shared
// state every 2ms for at most 2500 iterations; the channel wait below is
// signaled by the transport the moment the registry resolves the id and
// keeps the same 5 second ceiling as an upper bound.
const (
	callPollInterval = 2 * time.Millisecond
	callMaxPolls     = 2500
	callCeiling      = callMaxPolls * callPollInterval
)

// Call sends a request and blocks until the response arrives or the wait
// ceiling passes. Inbound delivery stays live during the wait; the read
// loop runs independently.
//
// A remote error reply is reported through the hooks and returned as an
// error wrapping the *RPCError; the result is nil so callers treat "no
// usable result" uniformly. A timeout returns an ErrTimeout-marked error
// and deliberately leaves the pending entry registered: it is cleaned up
// only at connection teardown, and a late response for it resolves into a
// buffered channel nobody reads, which is safe.
func (c *Client) Call(method string, params any) (json.RawMessage, error) {
	if c.transport == nil || c.transport.IsClosed() {
		return nil, errors.Mark(errors.Newf("%s not sent", method), ErrTransportClosed)
	}

	ceiling := c.cfg.CallTimeout
	if ceiling <= 0 {
		ceiling = callCeiling
	}

	id := c.registry.NextID()
	pr := &PendingRequest{
		ID:      id,
		Method:  method,
		Params:  params,
		Created: time.Now(),
		done:    make(chan resolution, 1),
	}
	c.registry.Register(pr)

	if err := c.transport.SendRequest(&Request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.registry.Resolve(rawID(id))
		return nil, errors.Wrapf(err, "send %s", method)
	}

	select {
	case res := <-pr.done:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp.Error != nil {
			c.hooks.showMessage(fmt.Sprintf("%s: %s (code %d)", method, res.resp.Error.Message, res.resp.Error.Code))
			return nil, remoteError(method, res.resp.Error)
		}
		return res.resp.Result, nil
	case <-time.After(ceiling):
		c.log.Warn("request timed out",
			zap.String("method", method),
			zap.Int64("id", id),
		)
		return nil, errors.Mark(errors.Newf("%s did not respond within %s", method, ceiling), ErrTimeout)
	}
}

// CallAsync sends a request with a continuation the response handler will
// invoke when the matching reply arrives. It never blocks the caller and
// returns the assigned request id, or an ErrTransportClosed-marked error
// when the transport is not open.
func (c *Client) CallAsync(method string, params any, cont Continuation) (int64, error) {
	if c.transport == nil || c.transport.IsClosed() {
		return 0, errors.Mark(errors.Newf("%s not sent", method), ErrTransportClosed)
	}

	id := c.registry.NextID()
	pr := &PendingRequest{
		ID:      id,
		Method:  method,
		Params:  params,
		Created: time.Now(),
		cont:    cont,
	}
	c.registry.Register(pr)

	if err := c.transport.SendRequest(&Request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.registry.Resolve(rawID(id))
		return 0, errors.Wrapf(err, "send %s", method)
	}
	return id, nil
}

// Notify sends a notification. On a closed transport this is a silent
// no-op like every other send.
func (c *Client) Notify(method string, params any) error {
	if c.transport == nil {
		return nil
	}
	return c.transport.SendRequest(&Request{JSONRPC: "2.0", Method: method, Params: params})
}

// Respond answers a server-initiated request.
func (c *Client) Respond(id json.RawMessage, result any, rpcErr *RPCError) error {
	if c.transport == nil {
		return nil
	}
	return c.transport.SendReply(id, result, rpcErr)
}

// dispatch is the catalog's default-async call shape. Under deterministic
// sync mode the same call blocks until resolution and feeds the
// continuation before returning (a mode switch, not a separate path), so
// assertions can run immediately after it returns.
func (c *Client) dispatch(method string, params any, cont Continuation) error {
	if c.SyncMode() {
		result, err := c.Call(method, params)
		if err != nil {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				cont(nil, rpcErr)
				return nil
			}
			return err
		}
		cont(result, nil)
		return nil
	}

	_, err := c.CallAsync(method, params, cont)
	return err
}

// handleResponse correlates an inbound response with its pending request.
// An id that matches nothing is ignored; a slow server may echo an id
// after local cleanup and that must not alter any state.
func (c *Client) handleResponse(resp *Response) {
	pr, ok := c.registry.Resolve(resp.ID)
	if !ok {
		c.log.Debug("response for unknown id ignored", zap.String("id", string(resp.ID)))
		return
	}

	switch {
	case pr.done != nil:
		select {
		case pr.done <- resolution{resp: resp}:
		default:
		}
	case pr.cont != nil:
		// Off the read loop so a slow continuation cannot stall inbound
		// delivery.
		go func() {
			if resp.Error != nil {
				c.hooks.showMessage(fmt.Sprintf("%s: %s (code %d)", pr.Method, resp.Error.Message, resp.Error.Code))
				pr.cont(nil, resp.Error)
				return
			}
			pr.cont(resp.Result, nil)
		}()
	}
}

// rawID renders an int64 id in the form servers echo it back.
func rawID(id int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", id))
}
