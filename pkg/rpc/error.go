package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

const errorParamKey = "error"

var (
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotConnected      = errors.New("not connected to server")
	ErrConnectionTimeout = errors.New("websocket connection timeout")
	ErrReadingMessage    = errors.New("error reading message")
	ErrDialingWebsocket  = errors.New("error dialing websocket server")

	ErrNilRequest        = errors.New("nil request")
	ErrMarshalingRequest = errors.New("error marshaling request")
	ErrSendingRequest    = errors.New("error sending request")
	ErrNoResponse        = errors.New("no response received")
	ErrSendingPing       = errors.New("error sending ping")
	ErrUnexpectedMethod  = errors.New("unexpected response method")
)

// Error is a handler error whose message is safe to send to the client.
// Any other error reaching Context.Fail is replaced by the fallback message.
type Error struct {
	err error
}

// Errorf formats a client-visible error.
func Errorf(format string, args ...any) Error {
	return Error{err: fmt.Errorf(format, args...)}
}

func (e Error) Error() string { return e.err.Error() }

func (e Error) Unwrap() error { return e.err }

// NewErrorParams builds the params of an "error" response.
func NewErrorParams(errMsg string) Params {
	raw, _ := json.Marshal(errMsg)
	return Params{errorParamKey: raw}
}
