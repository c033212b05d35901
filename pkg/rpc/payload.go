package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Payload is the signed part of a message. On the wire it is the array
// [RequestID, Method, Params, Timestamp], Timestamp in unix milliseconds.
type Payload struct {
	RequestID uint64
	Method    string
	Params    Params
	Timestamp uint64
}

func NewPayload(id uint64, method string, params Params) Payload {
	if params == nil {
		params = Params{}
	}

	return Payload{
		RequestID: id,
		Method:    method,
		Params:    params,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// Hash returns keccak256 of the JSON encoded payload. Params keys are encoded
// in sorted order, so the hash does not depend on map iteration.
func (p Payload) Hash() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(data), nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("payload is not an array: %w", err)
	}
	if len(raw) != 4 {
		return errors.New("payload must have exactly 4 elements")
	}

	if err := json.Unmarshal(raw[0], &p.RequestID); err != nil {
		return fmt.Errorf("invalid request id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Method); err != nil {
		return fmt.Errorf("invalid method: %w", err)
	}
	if err := json.Unmarshal(raw[2], &p.Params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if err := json.Unmarshal(raw[3], &p.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.RequestID, p.Method, p.Params, p.Timestamp})
}

// Params holds method arguments or results as raw JSON per key.
type Params map[string]json.RawMessage

// NewParams converts any JSON object shaped value (usually a struct) into Params.
func NewParams(v any) (Params, error) {
	if v == nil {
		return Params{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error marshalling params: %w", err)
	}
	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("error unmarshalling params: %w", err)
	}
	if params == nil {
		params = Params{}
	}
	return params, nil
}

// Translate decodes the params into v, which must be a pointer.
func (p Params) Translate(v any) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("error marshalling params: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error unmarshalling params: %w", err)
	}
	return nil
}

// Error returns the message stored under the "error" key, if any.
func (p Params) Error() error {
	raw, ok := p[errorParamKey]
	if !ok {
		return nil
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	return errors.New(msg)
}
