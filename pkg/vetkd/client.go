package vetkd

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
)

// Client issues one request per call and awaits exactly one reply. Every
// failure is reported as ErrDelegationFailed.
type Client interface {
	PublicKey(ctx context.Context, req PublicKeyRequest) ([]byte, error)
	EncryptedKey(ctx context.Context, req EncryptedKeyRequest) ([]byte, error)
}

var _ Client = (*RPCClient)(nil)

// RPCClient talks to the KDS over a pkg/rpc dialer. Requests are signed by
// signer, so the KDS sees the signer's address as the requesting party.
type RPCClient struct {
	cfg RPCClientConfig

	dialMu sync.Mutex
}

// RPCClientConfig configures an RPCClient. Signer, Dialer and ServiceID are
// required.
type RPCClientConfig struct {
	// URL is dialed on first use and again whenever the connection is lost.
	URL       string
	ServiceID sign.Web3Address
	Signer    sign.Signer
	Dialer    rpc.Dialer
	// ConnCtx bounds the lifetime of the connection, not of single calls.
	ConnCtx context.Context
	Logger  log.Logger
}

// NewRPCClient validates cfg. It does not connect; the first call dials URL.
func NewRPCClient(cfg RPCClientConfig) (*RPCClient, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("dialer cannot be nil")
	}
	if cfg.ServiceID.IsZero() {
		return nil, fmt.Errorf("service id cannot be empty")
	}
	if cfg.ConnCtx == nil {
		cfg.ConnCtx = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	cfg.Logger = cfg.Logger.WithName("vetkd")

	return &RPCClient{cfg: cfg}, nil
}

// ServiceID is the address every accepted reply must be signed by.
func (c *RPCClient) ServiceID() sign.Web3Address { return c.cfg.ServiceID }

// PublicKey calls vetkd_public_key and returns the derived public key.
func (c *RPCClient) PublicKey(ctx context.Context, req PublicKeyRequest) ([]byte, error) {
	var reply PublicKeyReply
	if err := c.call(ctx, PublicKeyMethod, req, &reply); err != nil {
		return nil, err
	}
	if len(reply.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: empty public key", ErrDelegationFailed)
	}
	return reply.PublicKey, nil
}

// EncryptedKey calls vetkd_encrypted_key and returns the derived key
// encrypted under req.EncryptionPublicKey.
func (c *RPCClient) EncryptedKey(ctx context.Context, req EncryptedKeyRequest) ([]byte, error) {
	var reply EncryptedKeyReply
	if err := c.call(ctx, EncryptedKeyMethod, req, &reply); err != nil {
		return nil, err
	}
	if len(reply.EncryptedKey) == 0 {
		return nil, fmt.Errorf("%w: empty encrypted key", ErrDelegationFailed)
	}
	return reply.EncryptedKey, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params, result any) error {
	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelegationFailed, err)
	}

	payload, err := rpc.PreparePayload(rpc.Method(method), params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelegationFailed, err)
	}
	sig, err := rpc.SignPayload(c.cfg.Signer, payload)
	if err != nil {
		return fmt.Errorf("%w: failed to sign request: %w", ErrDelegationFailed, err)
	}
	req := rpc.NewRequest(payload, sig)

	res, err := c.cfg.Dialer.Call(ctx, &req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelegationFailed, err)
	}

	signers, err := res.GetSigners()
	if err != nil {
		return fmt.Errorf("%w: invalid reply signature: %w", ErrDelegationFailed, err)
	}
	if !slices.Contains(signers, c.cfg.ServiceID) {
		return fmt.Errorf("%w: reply not signed by service %s", ErrDelegationFailed, c.cfg.ServiceID)
	}
	if err := res.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelegationFailed, err)
	}
	if res.Res.Method != method {
		return fmt.Errorf("%w: unexpected reply method %q", ErrDelegationFailed, res.Res.Method)
	}
	if err := res.Res.Params.Translate(result); err != nil {
		return fmt.Errorf("%w: %w", ErrDelegationFailed, err)
	}
	return nil
}

func (c *RPCClient) ensureConnected() error {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	if c.cfg.Dialer.IsConnected() {
		return nil
	}

	ctx := log.SetContextLogger(c.cfg.ConnCtx, c.cfg.Logger)
	err := c.cfg.Dialer.Dial(ctx, c.cfg.URL, func(err error) {
		if err != nil {
			c.cfg.Logger.Warn("connection to key derivation service lost", "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.cfg.Logger.Info("connected to key derivation service", "url", c.cfg.URL, "serviceID", c.cfg.ServiceID)
	return nil
}
