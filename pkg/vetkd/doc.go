// Package vetkd is the client side of the threshold key derivation service
// (KDS). The service derives key material from a derivation path naming the
// key purpose, a key id, and, for private material, a derivation id naming
// whom the key belongs to. Private material is only ever returned encrypted
// under a transport public key supplied by the caller.
//
// The KDS speaks the pkg/rpc protocol. Its service id is the address its
// replies are signed with; replies signed by anyone else are rejected.
package vetkd
