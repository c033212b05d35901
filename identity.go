package main

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Identity is the caller identity supplied by the RPC node: the hex address
// of the session key that signed the request.
type Identity string

// AnonymousIdentity is the identity of unsigned requests. It is never
// treated as authenticated.
const AnonymousIdentity Identity = ""

func (id Identity) IsAnonymous() bool { return id == AnonymousIdentity }

// Bytes returns the raw identity bytes that authentication signatures are
// taken over. Identities that are not hex are used verbatim.
func (id Identity) Bytes() []byte {
	if id.IsAnonymous() {
		return nil
	}
	if raw, err := hexutil.Decode(string(id)); err == nil {
		return raw
	}
	return []byte(id)
}

func (id Identity) String() string {
	if id.IsAnonymous() {
		return "anonymous"
	}
	return string(id)
}
