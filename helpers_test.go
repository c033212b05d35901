package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
	"github.com/erc7824/docvault/pkg/vetkd"
	"github.com/erc7824/docvault/pkg/vetkd/vetkdtest"
)

func testLogger() log.Logger {
	return log.NewNoopLogger()
}

func newTestSigner(t *testing.T) *sign.EthereumSigner {
	t.Helper()
	signer, err := sign.GenerateEthereumSigner()
	require.NoError(t, err)
	return signer
}

// identityOf is the identity the RPC node assigns to requests signed by session.
func identityOf(session sign.Signer) Identity {
	return Identity(session.Address().String())
}

// authSignature signs keccak256(identity bytes) with account.
func authSignature(t *testing.T, id Identity, account sign.Signer) sign.Signature {
	t.Helper()
	sig, err := account.Sign(crypto.Keccak256(id.Bytes()))
	require.NoError(t, err)
	return sig
}

type vaultEnv struct {
	vault    *Vault
	kds      *vetkdtest.Server
	self     *sign.EthereumSigner
	metrics  *Metrics
	vetkdCfg VetKDConfig
}

func newVaultEnv(t *testing.T, state State) *vaultEnv {
	t.Helper()

	kds := vetkdtest.NewServer(t)
	self := newTestSigner(t)

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

	vetkdCfg := DefaultVetKDConfig()
	vetkdCfg.ServiceID = kds.ServiceID().String()
	require.NoError(t, vetkdCfg.Validate())

	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	return &vaultEnv{
		vault:    NewVault(state, client, vetkdCfg, metrics),
		kds:      kds,
		self:     self,
		metrics:  metrics,
		vetkdCfg: vetkdCfg,
	}
}
