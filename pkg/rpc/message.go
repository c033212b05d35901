package rpc

import (
	"github.com/erc7824/docvault/pkg/sign"
)

// Request is {"req": payload, "sig": [...]}.
type Request struct {
	Req Payload          `json:"req"`
	Sig []sign.Signature `json:"sig"`
}

func NewRequest(payload Payload, sig ...sign.Signature) Request {
	return Request{Req: payload, Sig: sig}
}

// GetSigners recovers one address per signature, in order.
func (r Request) GetSigners() ([]sign.Web3Address, error) {
	return recoverPayloadSigners(r.Req, r.Sig)
}

// Response is {"res": payload, "sig": [...]}. Res.RequestID echoes the request.
type Response struct {
	Res Payload          `json:"res"`
	Sig []sign.Signature `json:"sig"`
}

func NewResponse(payload Payload, sig ...sign.Signature) Response {
	return Response{Res: payload, Sig: sig}
}

func (r Response) GetSigners() ([]sign.Web3Address, error) {
	return recoverPayloadSigners(r.Res, r.Sig)
}

// NewErrorResponse builds a response with method "error" and params {"error": errMsg}.
func NewErrorResponse(requestID uint64, errMsg string, sig ...sign.Signature) Response {
	return NewResponse(NewPayload(requestID, ErrorMethod.String(), NewErrorParams(errMsg)), sig...)
}

// Error returns the remote error carried by an error response, or nil.
func (r Response) Error() error {
	if r.Res.Method != ErrorMethod.String() {
		return nil
	}
	return r.Res.Params.Error()
}

func recoverPayloadSigners(payload Payload, sigs []sign.Signature) ([]sign.Web3Address, error) {
	hash, err := payload.Hash()
	if err != nil {
		return nil, err
	}

	addrs := make([]sign.Web3Address, 0, len(sigs))
	for _, s := range sigs {
		addr, err := sign.RecoverWeb3AddressFromHash(hash, s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// SignPayload signs payload.Hash() with signer.
func SignPayload(signer sign.Signer, payload Payload) (sign.Signature, error) {
	hash, err := payload.Hash()
	if err != nil {
		return nil, err
	}
	return signer.Sign(hash)
}
