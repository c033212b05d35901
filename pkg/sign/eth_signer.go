package sign

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var _ Signer = (*EthereumSigner)(nil)

// EthereumSigner signs with a secp256k1 private key held in memory.
type EthereumSigner struct {
	privateKey *ecdsa.PrivateKey
	address    Web3Address
}

// NewEthereumSigner parses a hex private key, with or without the 0x prefix.
func NewEthereumSigner(privateKeyHex string) (*EthereumSigner, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}
	return newEthereumSigner(key), nil
}

// GenerateEthereumSigner creates a signer around a fresh random key.
func GenerateEthereumSigner() (*EthereumSigner, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate private key: %w", err)
	}
	return newEthereumSigner(key), nil
}

func newEthereumSigner(key *ecdsa.PrivateKey) *EthereumSigner {
	return &EthereumSigner{
		privateKey: key,
		address:    PredictWeb3Address(&key.PublicKey),
	}
}

func (s *EthereumSigner) Address() Web3Address { return s.address }

func (s *EthereumSigner) PublicKey() *ecdsa.PublicKey { return &s.privateKey.PublicKey }

// PrivateKeyHex returns the key without the 0x prefix, the form NewEthereumSigner accepts.
func (s *EthereumSigner) PrivateKeyHex() string {
	return hex.EncodeToString(ethcrypto.FromECDSA(s.privateKey))
}

// Sign expects hash to be a 32-byte digest. v is shifted to 27/28.
func (s *EthereumSigner) Sign(hash []byte) (Signature, error) {
	sig, err := ethcrypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return Signature(sig), nil
}
