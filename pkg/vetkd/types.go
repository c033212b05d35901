package vetkd

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erc7824/docvault/pkg/sign"
)

const (
	PublicKeyMethod    = "vetkd_public_key"
	EncryptedKeyMethod = "vetkd_encrypted_key"
)

// ErrDelegationFailed wraps every error returned by a Client.
var ErrDelegationFailed = errors.New("key derivation delegation failed")

// Curve names the pairing curve of a KDS master key.
type Curve string

const CurveBLS12381 Curve = "bls12_381"

// KeyID selects a KDS master key.
type KeyID struct {
	Curve Curve  `json:"curve" yaml:"curve" validate:"required"`
	Name  string `json:"name" yaml:"name" validate:"required"`
}

// DefaultKeyID is the test key of the key derivation service.
var DefaultKeyID = KeyID{Curve: CurveBLS12381, Name: "test_key_1"}

func (k KeyID) String() string { return fmt.Sprintf("%s/%s", k.Curve, k.Name) }

// DerivationPath is an ordered list of labels, such as a key purpose name.
type DerivationPath []hexutil.Bytes

// NewDerivationPath encodes each label as raw bytes.
func NewDerivationPath(labels ...string) DerivationPath {
	path := make(DerivationPath, len(labels))
	for i, label := range labels {
		path[i] = hexutil.Bytes(label)
	}
	return path
}

// PublicKeyRequest asks for the public key of a derivation path. A nil
// ServiceID means the requesting party itself.
type PublicKeyRequest struct {
	ServiceID      *sign.Web3Address `json:"service_id,omitempty"`
	DerivationPath DerivationPath    `json:"derivation_path"`
	KeyID          KeyID             `json:"key_id" validate:"required"`
}

type PublicKeyReply struct {
	PublicKey hexutil.Bytes `json:"public_key"`
}

// EncryptedKeyRequest asks for the private key of (DerivationID,
// DerivationPath) encrypted under EncryptionPublicKey.
type EncryptedKeyRequest struct {
	DerivationID        hexutil.Bytes  `json:"derivation_id" validate:"required"`
	DerivationPath      DerivationPath `json:"derivation_path"`
	KeyID               KeyID          `json:"key_id" validate:"required"`
	EncryptionPublicKey hexutil.Bytes  `json:"encryption_public_key" validate:"required"`
}

type EncryptedKeyReply struct {
	EncryptedKey hexutil.Bytes `json:"encrypted_key"`
}
