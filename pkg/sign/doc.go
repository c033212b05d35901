// Package sign holds the signing and address recovery primitives of docvault.
//
// An actor's Web3Address is the rightmost 20 bytes of the keccak256 hash of
// its 65-byte uncompressed secp256k1 public key (0x04 prefix included). Note
// that this differs from the Ethereum account address, which hashes the key
// without its prefix byte.
//
// Signers always sign a 32-byte hash and emit 65-byte [r || s || v]
// signatures with v in {27, 28}. Recovery accepts v in {0, 1, 27, 28}:
//
//	signer, err := sign.NewEthereumSigner(privateKeyHex)
//	if err != nil {
//	    return err
//	}
//	sig, err := signer.Sign(crypto.Keccak256(identity))
//	if err != nil {
//	    return err
//	}
//	addr, err := sign.RecoverWeb3Address(identity, sig) // addr == signer.Address()
package sign
