package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
)

var (
	// ErrUnauthenticated is returned for anonymous callers.
	ErrUnauthenticated = errors.New("caller is anonymous")
	// ErrNotAuthenticated is returned for callers with no address on file.
	ErrNotAuthenticated  = errors.New("caller has not authenticated")
	ErrUnknownKeyPurpose = errors.New("unknown key purpose")
)

// Vault binds caller identities to recovered addresses, keeps the documents
// of each address and obtains key material from the key derivation service.
type Vault struct {
	state   State
	kds     vetkd.Client
	keys    VetKDConfig
	metrics *Metrics
}

// NewVault returns a Vault over state and kds. A nil metrics registers a
// private set on a fresh registry.
func NewVault(state State, kds vetkd.Client, keys VetKDConfig, metrics *Metrics) *Vault {
	if metrics == nil {
		metrics = NewMetricsWithRegistry(prometheus.NewRegistry())
	}
	return &Vault{state: state, kds: kds, keys: keys, metrics: metrics}
}

// Authenticate recovers the address that signed keccak256(identity bytes) and
// records it for id, replacing any previous address. Documents stored under a
// previous address stay where they are.
func (v *Vault) Authenticate(ctx context.Context, id Identity, sig sign.Signature) (sign.Web3Address, error) {
	if id.IsAnonymous() {
		v.metrics.AuthAttemptsFail.WithLabelValues("anonymous").Inc()
		return sign.Web3Address{}, ErrUnauthenticated
	}

	addr, err := sign.RecoverWeb3Address(id.Bytes(), sig)
	if err != nil {
		v.metrics.AuthAttemptsFail.WithLabelValues(recoveryFailureReason(err)).Inc()
		return sign.Web3Address{}, err
	}

	if err := v.state.SetUserAddress(ctx, id, addr); err != nil {
		return sign.Web3Address{}, err
	}
	v.metrics.AuthAttemptsSuccess.Inc()
	return addr, nil
}

// Address returns the address on file for id.
func (v *Vault) Address(ctx context.Context, id Identity) (sign.Web3Address, error) {
	if id.IsAnonymous() {
		return sign.Web3Address{}, ErrUnauthenticated
	}
	return v.state.UserAddress(ctx, id)
}

// StoreDocument appends doc to the documents of id's address and returns the
// resulting document count.
func (v *Vault) StoreDocument(ctx context.Context, id Identity, doc EncryptedDocument) (int, error) {
	if id.IsAnonymous() {
		return 0, ErrUnauthenticated
	}

	count, err := v.state.AppendDocument(ctx, id, doc)
	if err != nil {
		return 0, err
	}
	v.metrics.DocumentsStored.Inc()
	return count, nil
}

// ListDocuments returns the documents of id's address in storage order. A
// caller without an address, anonymous included, gets an empty list.
func (v *Vault) ListDocuments(ctx context.Context, id Identity) ([]EncryptedDocument, error) {
	return v.state.Documents(ctx, id)
}

// VerificationKey fetches the vault's public key for purpose.
func (v *Vault) VerificationKey(ctx context.Context, purpose string) ([]byte, error) {
	p, err := v.keys.Purpose(purpose)
	if err != nil {
		return nil, err
	}

	key, err := v.kds.PublicKey(ctx, vetkd.PublicKeyRequest{
		DerivationPath: vetkd.NewDerivationPath(p.Name),
		KeyID:          v.keys.KeyID,
	})
	v.observeDelegation("public_key", err)
	return key, err
}

// DecryptionKey fetches the caller's private key for purpose, encrypted under
// transportKey. The derivation id is the caller's address or identity bytes,
// depending on the purpose.
func (v *Vault) DecryptionKey(ctx context.Context, id Identity, purpose string, transportKey []byte) ([]byte, error) {
	p, err := v.keys.Purpose(purpose)
	if err != nil {
		return nil, err
	}
	if id.IsAnonymous() {
		return nil, ErrUnauthenticated
	}

	var derivationID []byte
	switch p.DerivationID {
	case DerivationFromAddress:
		addr, err := v.state.UserAddress(ctx, id)
		if err != nil {
			return nil, err
		}
		derivationID = addr.Bytes()
	case DerivationFromIdentity:
		derivationID = id.Bytes()
	default:
		return nil, fmt.Errorf("unsupported derivation id source %q", p.DerivationID)
	}

	key, err := v.kds.EncryptedKey(ctx, vetkd.EncryptedKeyRequest{
		DerivationID:        derivationID,
		DerivationPath:      vetkd.NewDerivationPath(p.Name),
		KeyID:               v.keys.KeyID,
		EncryptionPublicKey: transportKey,
	})
	v.observeDelegation("encrypted_key", err)
	return key, err
}

func (v *Vault) observeDelegation(kind string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	v.metrics.DelegationCalls.WithLabelValues(kind, status).Inc()
}

func recoveryFailureReason(err error) string {
	switch {
	case errors.Is(err, sign.ErrInvalidSignatureLength):
		return "invalid_signature_length"
	case errors.Is(err, sign.ErrMalformedSignature):
		return "malformed_signature"
	case errors.Is(err, sign.ErrInvalidRecoveryID):
		return "invalid_recovery_id"
	default:
		return "recovery_failed"
	}
}
