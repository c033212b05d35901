package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erc7824/docvault/pkg/sign"
)

// Handler processes a request. Middleware calls c.Next to run the rest of the chain.
type Handler func(c *Context)

// Context carries one request through its handler chain.
type Context struct {
	Context context.Context
	// Identity is the hex address that signed the request, or "" when the
	// request was unsigned.
	Identity string
	Signer   sign.Signer
	Request  Request
	Response Response

	handlers []Handler
}

func (c *Context) Next() {
	if len(c.handlers) == 0 {
		return
	}

	handler := c.handlers[0]
	c.handlers = c.handlers[1:]
	handler(c)
}

// Succeed answers with method and params. params may be nil.
func (c *Context) Succeed(method string, params Params) {
	c.Response.Res = NewPayload(c.Request.Req.RequestID, method, params)
}

// Fail answers with an error. The message of an rpc.Error (also when wrapped)
// is sent as is; otherwise fallbackMessage, or a generic message when empty.
func (c *Context) Fail(err error, fallbackMessage string) {
	message := fallbackMessage
	var rpcErr Error
	if errors.As(err, &rpcErr) {
		message = rpcErr.Error()
	}
	if message == "" {
		message = defaultNodeErrorMessage
	}

	c.Response = NewErrorResponse(c.Request.Req.RequestID, message)
}

// Failed reports whether the current response is an error response.
func (c *Context) Failed() bool {
	return c.Response.Res.Method == ErrorMethod.String()
}

// GetRawResponse signs the response and encodes it.
func (c *Context) GetRawResponse() ([]byte, error) {
	if c.Response.Res.Method == "" {
		c.Fail(nil, "internal server error: no response from handler")
	}
	return prepareRawResponse(c.Signer, c.Response.Res)
}

func prepareRawResponse(signer sign.Signer, payload Payload) ([]byte, error) {
	signature, err := SignPayload(signer, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign response: %w", err)
	}

	data, err := json.Marshal(NewResponse(payload, signature))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return data, nil
}
