package sign

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	SignatureLength = 65
	AddressLength   = 20
)

var (
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	ErrMalformedSignature     = errors.New("malformed signature")
	ErrInvalidRecoveryID      = errors.New("invalid recovery id")
	ErrRecoveryFailed         = errors.New("public key recovery failed")
)

var secp256k1N = ethcrypto.S256().Params().N

// Web3Address is the 20-byte owner key of stored documents.
type Web3Address [AddressLength]byte

func (a Web3Address) String() string { return hexutil.Encode(a[:]) }

func (a Web3Address) Bytes() []byte { return a[:] }

func (a Web3Address) IsZero() bool { return a == Web3Address{} }

func (a Web3Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Web3Address) UnmarshalText(text []byte) error {
	parsed, err := HexToWeb3Address(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// HexToWeb3Address parses a 0x-prefixed 40 digit hex string.
func HexToWeb3Address(s string) (Web3Address, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return Web3Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return Web3Address{}, fmt.Errorf("invalid address %q: expected %d bytes, got %d", s, AddressLength, len(raw))
	}
	var a Web3Address
	copy(a[:], raw)
	return a, nil
}

// PredictWeb3Address derives the address a key will authenticate as.
func PredictWeb3Address(pub *ecdsa.PublicKey) Web3Address {
	var a Web3Address
	copy(a[:], ethcrypto.Keccak256(ethcrypto.FromECDSAPub(pub))[12:])
	return a
}

// RecoverWeb3Address recovers the address that signed keccak256(message).
func RecoverWeb3Address(message []byte, sig Signature) (Web3Address, error) {
	return RecoverWeb3AddressFromHash(ethcrypto.Keccak256(message), sig)
}

// RecoverWeb3AddressFromHash recovers the address that signed a 32-byte hash.
// sig is not modified.
func RecoverWeb3AddressFromHash(hash []byte, sig Signature) (Web3Address, error) {
	if len(sig) != SignatureLength {
		return Web3Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignatureLength, SignatureLength, len(sig))
	}

	// Only out-of-range scalars are malformed. A zero r or s parses and
	// then fails recovery.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return Web3Address{}, ErrMalformedSignature
	}

	v, err := NormalizeRecoveryID(sig[64])
	if err != nil {
		return Web3Address{}, err
	}

	compact := make([]byte, SignatureLength)
	copy(compact, sig[:64])
	compact[64] = v

	pub, err := ethcrypto.SigToPub(hash, compact)
	if err != nil {
		return Web3Address{}, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return PredictWeb3Address(pub), nil
}

// NormalizeRecoveryID maps 27/28 to 0/1. 0 and 1 pass through.
func NormalizeRecoveryID(v byte) (byte, error) {
	id := v
	if id >= 27 {
		id -= 27
	}
	if id > 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, v)
	}
	return id, nil
}
