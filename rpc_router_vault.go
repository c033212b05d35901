package main

import (
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
)

// HandleGetConfig describes the node and its key derivation setup.
func (r *RPCRouter) HandleGetConfig(c *rpc.Context) {
	purposes := make([]rpc.KeyPurposeInfo, 0, len(r.VetKD.Purposes))
	for _, p := range r.VetKD.Purposes {
		purposes = append(purposes, rpc.KeyPurposeInfo{Name: p.Name, DerivationID: string(p.DerivationID)})
	}

	succeed(c, rpc.GetConfigResponse{
		NodeAddress: r.Signer.Address(),
		ServiceID:   r.VetKD.ServiceAddress(),
		KeyID:       rpc.KeyIDInfo{Curve: string(r.VetKD.KeyID.Curve), Name: r.VetKD.KeyID.Name},
		Purposes:    purposes,
	})
}

// HandleAuthenticate binds the caller identity to the address recovered from
// a signature over keccak256(identity).
func (r *RPCRouter) HandleAuthenticate(c *rpc.Context) {
	ctx := c.Context
	logger := log.FromContext(ctx)

	var req rpc.AuthenticateRequest
	if err := r.parseParams(c, &req); err != nil {
		c.Fail(err, "failed to parse parameters")
		return
	}

	addr, err := r.Vault.Authenticate(ctx, Identity(c.Identity), req.Signature)
	if err != nil {
		logger.Debug("authentication failed", "identity", Identity(c.Identity), "error", err)
		c.Fail(vaultError(err), "failed to authenticate")
		return
	}

	logger.Info("caller authenticated", "identity", Identity(c.Identity), "address", addr)
	succeed(c, rpc.AuthenticateResponse{Address: addr})
}

// HandleGetMyAddress returns the address the caller authenticated as.
func (r *RPCRouter) HandleGetMyAddress(c *rpc.Context) {
	addr, err := r.Vault.Address(c.Context, Identity(c.Identity))
	if err != nil {
		c.Fail(vaultError(err), "failed to get address")
		return
	}
	succeed(c, rpc.GetMyAddressResponse{Address: addr})
}

// HandleStoreDocument appends an encrypted document to the caller's address
// and returns how many documents that address now holds.
func (r *RPCRouter) HandleStoreDocument(c *rpc.Context) {
	ctx := c.Context
	logger := log.FromContext(ctx)

	var req rpc.StoreDocumentRequest
	if err := r.parseParams(c, &req); err != nil {
		c.Fail(err, "failed to parse parameters")
		return
	}

	count, err := r.Vault.StoreDocument(ctx, Identity(c.Identity), EncryptedDocument(req.Document))
	if err != nil {
		logger.Error("failed to store document", "error", err)
		c.Fail(vaultError(err), "failed to store document")
		return
	}

	logger.Debug("document stored", "size", len(req.Document), "count", count)
	succeed(c, rpc.StoreDocumentResponse{Count: count})
}

// HandleListDocuments never fails for a caller without an address; such a
// caller gets an empty list.
func (r *RPCRouter) HandleListDocuments(c *rpc.Context) {
	docs, err := r.Vault.ListDocuments(c.Context, Identity(c.Identity))
	if err != nil {
		log.FromContext(c.Context).Error("failed to list documents", "error", err)
		c.Fail(vaultError(err), "failed to list documents")
		return
	}

	resp := rpc.ListDocumentsResponse{Documents: make([]hexutil.Bytes, len(docs))}
	for i, doc := range docs {
		resp.Documents[i] = hexutil.Bytes(doc)
	}
	succeed(c, resp)
}

func (r *RPCRouter) verificationKeyHandler(purpose string) rpc.Handler {
	return func(c *rpc.Context) {
		key, err := r.Vault.VerificationKey(c.Context, purpose)
		if err != nil {
			log.FromContext(c.Context).Error("failed to get verification key", "purpose", purpose, "error", err)
			c.Fail(vaultError(err), "failed to get verification key")
			return
		}
		succeed(c, rpc.VerificationKeyResponse{PublicKey: key})
	}
}

func (r *RPCRouter) decryptionKeyHandler(purpose string) rpc.Handler {
	return func(c *rpc.Context) {
		ctx := c.Context

		var req rpc.DecryptionKeyRequest
		if err := r.parseParams(c, &req); err != nil {
			c.Fail(err, "failed to parse parameters")
			return
		}

		key, err := r.Vault.DecryptionKey(ctx, Identity(c.Identity), purpose, req.EncryptionPublicKey)
		if err != nil {
			log.FromContext(ctx).Error("failed to get decryption key", "purpose", purpose, "error", err)
			c.Fail(vaultError(err), "failed to get decryption key")
			return
		}
		succeed(c, rpc.DecryptionKeyResponse{EncryptedKey: key})
	}
}

// vaultError turns domain errors into messages safe to send to the client.
// Other errors pass through and are answered with the handler's fallback.
func vaultError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return rpc.Errorf("unauthenticated: request must be signed")
	case errors.Is(err, ErrNotAuthenticated):
		return rpc.Errorf("not authenticated: call %s first", rpc.AuthenticateMethod)
	case errors.Is(err, sign.ErrInvalidSignatureLength),
		errors.Is(err, sign.ErrMalformedSignature),
		errors.Is(err, sign.ErrInvalidRecoveryID),
		errors.Is(err, sign.ErrRecoveryFailed):
		return rpc.Errorf("invalid signature: %v", err)
	case errors.Is(err, ErrUnknownKeyPurpose):
		return rpc.Errorf("%v", err)
	case errors.Is(err, vetkd.ErrDelegationFailed):
		return rpc.Errorf("%v", vetkd.ErrDelegationFailed)
	}
	return err
}
