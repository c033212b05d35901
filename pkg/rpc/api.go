package rpc

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erc7824/docvault/pkg/sign"
)

// Method is an RPC method name.
type Method string

func (m Method) String() string { return string(m) }

const (
	PingMethod  Method = "ping"
	PongMethod  Method = "pong"
	ErrorMethod Method = "error"

	// GetConfigMethod describes the node and its key derivation setup.
	GetConfigMethod Method = "get_config"

	// AuthenticateMethod binds the caller identity to the address recovered
	// from a signature over keccak256(identity bytes).
	AuthenticateMethod  Method = "authenticate"
	GetMyAddressMethod  Method = "get_my_address"
	StoreDocumentMethod Method = "store_encrypted_document"
	ListDocumentsMethod Method = "list_my_documents"

	SymmetricKeyVerificationKeyMethod        Method = "symmetric_key_verification_key"
	EncryptedSymmetricKeyForCallerMethod     Method = "encrypted_symmetric_key_for_caller"
	IBEEncryptionKeyMethod                   Method = "ibe_encryption_key"
	EncryptedIBEDecryptionKeyForCallerMethod Method = "encrypted_ibe_decryption_key_for_caller"
)

// AuthenticateRequest carries the account signature over keccak256 of the
// caller identity bytes.
type AuthenticateRequest struct {
	Signature sign.Signature `json:"signature"`
}

type AuthenticateResponse struct {
	Address sign.Web3Address `json:"address"`
}

type GetMyAddressResponse struct {
	Address sign.Web3Address `json:"address"`
}

type StoreDocumentRequest struct {
	Document hexutil.Bytes `json:"document"`
}

type StoreDocumentResponse struct {
	// Count is the number of documents held for the caller's address after the append.
	Count int `json:"count"`
}

type ListDocumentsResponse struct {
	Documents []hexutil.Bytes `json:"documents"`
}

type VerificationKeyResponse struct {
	PublicKey hexutil.Bytes `json:"public_key"`
}

// DecryptionKeyRequest carries the transport public key the derived key is
// encrypted under.
type DecryptionKeyRequest struct {
	EncryptionPublicKey hexutil.Bytes `json:"encryption_public_key" validate:"required"`
}

type DecryptionKeyResponse struct {
	EncryptedKey hexutil.Bytes `json:"encrypted_key"`
}

type KeyIDInfo struct {
	Curve string `json:"curve"`
	Name  string `json:"name"`
}

type KeyPurposeInfo struct {
	Name         string `json:"name"`
	DerivationID string `json:"derivation_id"`
}

// GetConfigResponse describes the node and the key derivation setup it uses.
type GetConfigResponse struct {
	NodeAddress sign.Web3Address `json:"node_address"`
	ServiceID   sign.Web3Address `json:"service_id"`
	KeyID       KeyIDInfo        `json:"key_id"`
	Purposes    []KeyPurposeInfo `json:"purposes"`
}
