package vetkd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
	"github.com/erc7824/docvault/pkg/vetkd/vetkdtest"
)

func newClient(t *testing.T, kds *vetkdtest.Server) (*vetkd.RPCClient, *sign.EthereumSigner) {
	t.Helper()

	self, err := sign.GenerateEthereumSigner()
	require.NoError(t, err)

	cfg := rpc.DefaultWebsocketDialerConfig
	cfg.PingInterval = 0
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client, err := vetkd.NewRPCClient(vetkd.RPCClientConfig{
		URL:       kds.URL,
		ServiceID: kds.ServiceID(),
		Signer:    self,
		Dialer:    rpc.NewWebsocketDialer(cfg),
		ConnCtx:   ctx,
	})
	require.NoError(t, err)
	return client, self
}

func TestNewRPCClient(t *testing.T) {
	signer, err := sign.GenerateEthereumSigner()
	require.NoError(t, err)
	dialer := rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig)

	_, err = vetkd.NewRPCClient(vetkd.RPCClientConfig{Dialer: dialer, ServiceID: signer.Address()})
	assert.EqualError(t, err, "signer cannot be nil")
	_, err = vetkd.NewRPCClient(vetkd.RPCClientConfig{Signer: signer, ServiceID: signer.Address()})
	assert.EqualError(t, err, "dialer cannot be nil")
	_, err = vetkd.NewRPCClient(vetkd.RPCClientConfig{Signer: signer, Dialer: dialer})
	assert.EqualError(t, err, "service id cannot be empty")
}

func TestRPCClient_PublicKey(t *testing.T) {
	kds := vetkdtest.NewServer(t)
	client, self := newClient(t, kds)
	ctx := context.Background()

	req := vetkd.PublicKeyRequest{
		DerivationPath: vetkd.NewDerivationPath("ibe_encryption"),
		KeyID:          vetkd.DefaultKeyID,
	}

	first, err := client.PublicKey(ctx, req)
	require.NoError(t, err)
	second, err := client.PublicKey(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, vetkdtest.ExpectedPublicKey(self.Address(), req), first)
	assert.Equal(t, 2, kds.Calls(vetkd.PublicKeyMethod), "replies are not cached")

	other := req
	other.DerivationPath = vetkd.NewDerivationPath("symmetric_key")
	third, err := client.PublicKey(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestRPCClient_EncryptedKey(t *testing.T) {
	kds := vetkdtest.NewServer(t)
	client, self := newClient(t, kds)
	ctx := context.Background()

	req := vetkd.EncryptedKeyRequest{
		DerivationID:        []byte{0xaa, 0xbb},
		DerivationPath:      vetkd.NewDerivationPath("symmetric_key"),
		KeyID:               vetkd.DefaultKeyID,
		EncryptionPublicKey: []byte{0x01, 0x02, 0x03},
	}

	key, err := client.EncryptedKey(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, vetkdtest.ExpectedEncryptedKey(self.Address(), req), key)

	req.DerivationID = []byte{0xcc}
	other, err := client.EncryptedKey(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	req.EncryptionPublicKey = nil
	_, err = client.EncryptedKey(ctx, req)
	require.ErrorIs(t, err, vetkd.ErrDelegationFailed)
	assert.Contains(t, err.Error(), "invalid parameters")
}

func TestRPCClient_Failures(t *testing.T) {
	ctx := context.Background()
	req := vetkd.PublicKeyRequest{DerivationPath: vetkd.NewDerivationPath("symmetric_key"), KeyID: vetkd.DefaultKeyID}

	t.Run("error reply", func(t *testing.T) {
		kds := vetkdtest.NewServer(t)
		client, _ := newClient(t, kds)
		kds.FailWith("key not found")

		_, err := client.PublicKey(ctx, req)
		require.ErrorIs(t, err, vetkd.ErrDelegationFailed)
		assert.Contains(t, err.Error(), "key not found")

		kds.FailWith("")
		_, err = client.PublicKey(ctx, req)
		require.NoError(t, err)
	})

	t.Run("impostor reply", func(t *testing.T) {
		kds := vetkdtest.NewServer(t)
		client, _ := newClient(t, kds)
		impostor, err := sign.GenerateEthereumSigner()
		require.NoError(t, err)
		kds.SignRepliesWith(impostor)

		_, err = client.PublicKey(ctx, req)
		require.ErrorIs(t, err, vetkd.ErrDelegationFailed)
		assert.Contains(t, err.Error(), "not signed by service")
	})

	t.Run("empty key", func(t *testing.T) {
		kds := vetkdtest.NewServer(t)
		client, _ := newClient(t, kds)
		kds.ReturnEmptyKeys(true)

		_, err := client.PublicKey(ctx, req)
		require.ErrorIs(t, err, vetkd.ErrDelegationFailed)
	})

	t.Run("service unreachable", func(t *testing.T) {
		self, err := sign.GenerateEthereumSigner()
		require.NoError(t, err)
		client, err := vetkd.NewRPCClient(vetkd.RPCClientConfig{
			URL:       "ws://127.0.0.1:1/ws",
			ServiceID: self.Address(),
			Signer:    self,
			Dialer:    rpc.NewWebsocketDialer(rpc.DefaultWebsocketDialerConfig),
		})
		require.NoError(t, err)

		_, err = client.PublicKey(ctx, req)
		require.ErrorIs(t, err, vetkd.ErrDelegationFailed)
	})

	t.Run("cancelled call", func(t *testing.T) {
		kds := vetkdtest.NewServer(t)
		client, _ := newClient(t, kds)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.PublicKey(cctx, req)
		require.ErrorIs(t, err, vetkd.ErrDelegationFailed)
	})
}

func TestKeyID(t *testing.T) {
	assert.Equal(t, "bls12_381/test_key_1", vetkd.DefaultKeyID.String())
	path := vetkd.NewDerivationPath("ibe_encryption")
	require.Len(t, path, 1)
	assert.Equal(t, []byte("ibe_encryption"), []byte(path[0]))
}
