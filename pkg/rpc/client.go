package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/erc7824/docvault/pkg/sign"
)

// Client is a typed vault API client. Requests are signed with the session
// signer, whose address is the identity the node sees. A Client without a
// session signer calls as the anonymous identity.
type Client struct {
	dialer  Dialer
	session sign.Signer
}

func NewClient(dialer Dialer, session sign.Signer) *Client {
	return &Client{dialer: dialer, session: session}
}

// Start dials the node at url.
func (c *Client) Start(ctx context.Context, url string, handleClosure func(err error)) error {
	return c.dialer.Dial(ctx, url, handleClosure)
}

// Identity returns the raw identity bytes the node will see, nil when anonymous.
func (c *Client) Identity() []byte {
	if c.session == nil {
		return nil
	}
	return c.session.Address().Bytes()
}

func (c *Client) Ping(ctx context.Context) error {
	res, err := c.call(ctx, PingMethod, nil)
	if err != nil {
		return err
	}
	if res.Res.Method != PongMethod.String() {
		return fmt.Errorf("%w: %s", ErrUnexpectedMethod, res.Res.Method)
	}
	return nil
}

func (c *Client) GetConfig(ctx context.Context) (GetConfigResponse, error) {
	var resp GetConfigResponse
	return resp, c.invoke(ctx, GetConfigMethod, nil, &resp)
}

// Authenticate sends a precomputed authentication signature.
func (c *Client) Authenticate(ctx context.Context, sig sign.Signature) (AuthenticateResponse, error) {
	var resp AuthenticateResponse
	return resp, c.invoke(ctx, AuthenticateMethod, AuthenticateRequest{Signature: sig}, &resp)
}

// AuthenticateWith signs keccak256(identity) with account and authenticates,
// binding this session to account's address.
func (c *Client) AuthenticateWith(ctx context.Context, account sign.Signer) (AuthenticateResponse, error) {
	sig, err := account.Sign(crypto.Keccak256(c.Identity()))
	if err != nil {
		return AuthenticateResponse{}, fmt.Errorf("failed to sign identity: %w", err)
	}
	return c.Authenticate(ctx, sig)
}

func (c *Client) GetMyAddress(ctx context.Context) (sign.Web3Address, error) {
	var resp GetMyAddressResponse
	err := c.invoke(ctx, GetMyAddressMethod, nil, &resp)
	return resp.Address, err
}

func (c *Client) StoreDocument(ctx context.Context, document []byte) (int, error) {
	var resp StoreDocumentResponse
	err := c.invoke(ctx, StoreDocumentMethod, StoreDocumentRequest{Document: document}, &resp)
	return resp.Count, err
}

func (c *Client) ListDocuments(ctx context.Context) ([][]byte, error) {
	var resp ListDocumentsResponse
	if err := c.invoke(ctx, ListDocumentsMethod, nil, &resp); err != nil {
		return nil, err
	}

	docs := make([][]byte, len(resp.Documents))
	for i, doc := range resp.Documents {
		docs[i] = doc
	}
	return docs, nil
}

func (c *Client) SymmetricKeyVerificationKey(ctx context.Context) ([]byte, error) {
	return c.verificationKey(ctx, SymmetricKeyVerificationKeyMethod)
}

func (c *Client) EncryptedSymmetricKey(ctx context.Context, transportKey []byte) ([]byte, error) {
	return c.decryptionKey(ctx, EncryptedSymmetricKeyForCallerMethod, transportKey)
}

func (c *Client) IBEEncryptionKey(ctx context.Context) ([]byte, error) {
	return c.verificationKey(ctx, IBEEncryptionKeyMethod)
}

func (c *Client) EncryptedIBEDecryptionKey(ctx context.Context, transportKey []byte) ([]byte, error) {
	return c.decryptionKey(ctx, EncryptedIBEDecryptionKeyForCallerMethod, transportKey)
}

func (c *Client) verificationKey(ctx context.Context, method Method) ([]byte, error) {
	var resp VerificationKeyResponse
	err := c.invoke(ctx, method, nil, &resp)
	return resp.PublicKey, err
}

func (c *Client) decryptionKey(ctx context.Context, method Method, transportKey []byte) ([]byte, error) {
	var resp DecryptionKeyResponse
	err := c.invoke(ctx, method, DecryptionKeyRequest{EncryptionPublicKey: hexutil.Bytes(transportKey)}, &resp)
	return resp.EncryptedKey, err
}

func (c *Client) invoke(ctx context.Context, method Method, reqParams, result any) error {
	res, err := c.call(ctx, method, reqParams)
	if err != nil {
		return err
	}
	if res.Res.Method != method.String() {
		return fmt.Errorf("%w: %s", ErrUnexpectedMethod, res.Res.Method)
	}
	return res.Res.Params.Translate(result)
}

func (c *Client) call(ctx context.Context, method Method, reqParams any) (*Response, error) {
	payload, err := PreparePayload(method, reqParams)
	if err != nil {
		return nil, err
	}

	req := NewRequest(payload)
	if c.session != nil {
		sig, err := SignPayload(c.session, payload)
		if err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
		req.Sig = []sign.Signature{sig}
	}

	res, err := c.dialer.Call(ctx, &req)
	if err != nil {
		return nil, err
	}
	if err := res.Error(); err != nil {
		return nil, err
	}
	return res, nil
}

// PreparePayload packs reqParams under a fresh random request id.
func PreparePayload(method Method, reqParams any) (Payload, error) {
	params, err := NewParams(reqParams)
	if err != nil {
		return Payload{}, err
	}
	return NewPayload(uint64(uuid.New().ID()), method.String(), params), nil
}
