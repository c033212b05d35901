package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/erc7824/docvault/pkg/log"
	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
)

const sessionKeyEnv = "VAULTCTL_SESSION_KEY"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL        string
	SessionKey string
	Timeout    time.Duration
	Format     string // "json" | "text"
	Verbose    bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vaultctl",
		Short: "Client for the docvault encrypted document vault",
		Long: `Client for the docvault encrypted document vault.

Requests are signed with the session key, whose address is the identity the
vault sees. Without a session key requests are anonymous.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", "ws://localhost:8000/ws", "vault RPC endpoint")
	cmd.PersistentFlags().StringVar(&opts.SessionKey, "session-key", os.Getenv(sessionKeyEnv), "hex private key signing requests (env "+sessionKeyEnv+")")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log connection events to stderr")

	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewAuthenticateCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewVerificationKeyCommand(opts))
	cmd.AddCommand(NewDecryptionKeyCommand(opts))

	return cmd
}

// session opens a connection to the vault. The returned context carries the
// request timeout; call done when finished.
func (o *RootOptions) session(cmd *cobra.Command) (client *rpc.Client, ctx context.Context, done func(), err error) {
	var signer sign.Signer
	if o.SessionKey != "" {
		s, err := sign.NewEthereumSigner(o.SessionKey)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid session key: %w", err)
		}
		signer = s
	}

	logger := log.NewNoopLogger()
	if o.Verbose {
		logger = log.NewZapLogger(log.Config{Format: "console", Level: log.LevelDebug, Output: "stderr"})
	}

	connCtx, cancelConn := context.WithCancel(log.SetContextLogger(cmd.Context(), logger))
	cfg := rpc.DefaultWebsocketDialerConfig
	cfg.PingInterval = 0
	client = rpc.NewClient(rpc.NewWebsocketDialer(cfg), signer)
	if err := client.Start(connCtx, o.URL, nil); err != nil {
		cancelConn()
		return nil, nil, nil, fmt.Errorf("failed to connect to %s: %w", o.URL, err)
	}

	ctx, cancel := context.WithTimeout(connCtx, o.Timeout)
	return client, ctx, func() {
		cancel()
		cancelConn()
	}, nil
}
