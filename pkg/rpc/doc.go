// Package rpc implements the signed JSON-over-websocket protocol spoken by the
// vault node, its clients and the key derivation service.
//
// # Messages
//
// Every message is a JSON object holding one payload and a list of
// signatures. Requests carry the payload under "req", responses under "res":
//
//	{"req": [42, "list_my_documents", {}, 1718000000000], "sig": ["0x…"]}
//	{"res": [42, "list_my_documents", {"documents": []}, 1718000000005], "sig": ["0x…"]}
//
// The payload is a four element array:
//
//	[request_id, method, params, timestamp]
//
// Its elements are:
//   - request_id is an unsigned integer chosen by the caller. The response
//     echoes it, which is how WebsocketDialer matches replies to calls.
//   - method is the method name, see Method.
//   - params is a JSON object. Binary values are 0x-prefixed hex strings.
//   - timestamp is the sender's clock in unix milliseconds. It is signed but
//     not checked.
//
// # Signatures
//
// A signature is the 65-byte [r || s || v] secp256k1 signature over
// keccak256 of the JSON encoded payload, written as a hex string. Params keys
// are encoded in sorted order, so both sides hash the same bytes. v may be 0
// or 1, or 27 or 28 as produced by Ethereum tooling.
//
// Responses are always signed by the node's Signer. Clients should check that
// the expected address is among Response.GetSigners; vetkd.RPCClient rejects
// any reply that the key derivation service did not sign.
//
// # Identity
//
// The node recovers the address behind the first request signature and
// exposes it to handlers as Context.Identity, a lowercase 0x-prefixed hex
// string. Further signatures are ignored. A request without signatures comes
// from the anonymous caller and has an empty Identity. A request whose first
// signature cannot be recovered is rejected before routing with
// "invalid request signature".
//
// Identity is only the key that signed the envelope. The vault maps it to a
// separate account address with the authenticate method, so a short-lived
// session key can act for a long-lived account key.
//
// # Errors
//
// A failed call is answered with the "error" method and a single param:
//
//	{"res": [42, "error", {"error": "unknown method: foo"}, 1718000000005], "sig": ["0x…"]}
//
// Handlers report failures with Context.Fail. Only the message of an Error
// (created with Errorf, possibly wrapped) reaches the client; any other error
// is replaced by the handler's fallback message, or by a generic message, so
// internal details never leave the node. Response.Error turns an error reply
// back into a Go error on the client side.
//
// Messages that are not valid JSON, or whose payload is not a four element
// array, are answered with "invalid message format".
//
// # Keepalive
//
// The node answers "ping" with "pong" on every connection. WebsocketDialer
// sends a ping every PingInterval and closes the connection when one fails.
//
// # Server side
//
// WebsocketNode routes methods to Handler chains assembled from middleware
// (Use), groups (NewGroup) and handlers (Handle). Middleware of a group runs
// after the middleware of its parents and before the method handler; a
// middleware that does not call Context.Next ends the chain. Requests on one
// connection are handled in order.
//
// # Client side
//
// WebsocketDialer sends requests over one connection and matches replies by
// request id. A reply nobody waits for is dropped. Client wraps a dialer with
// typed calls for the vault API, signing every request with its session key.
package rpc
