package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/erc7824/docvault/pkg/rpc"
	"github.com/erc7824/docvault/pkg/sign"
)

func NewAddressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Show the address bound to the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, done, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer done()

			addr, err := client.GetMyAddress(ctx)
			if err != nil {
				return err
			}
			return newOutput(opts, cmd).keyValues(
				[2]string{"identity", hexutil.Encode(client.Identity())},
				[2]string{"address", addr.String()},
			)
		},
	}
}

func NewAuthenticateCommand(opts *RootOptions) *cobra.Command {
	var accountKey string

	cmd := &cobra.Command{
		Use:   "authenticate",
		Short: "Bind the session to the address of an account key",
		Long: `Bind the session to the address of an account key.

The account key signs keccak256 of the session identity; the vault records the
address recovered from that signature. Without --account-key the session key
authenticates itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accountKey == "" {
				accountKey = opts.SessionKey
			}
			account, err := sign.NewEthereumSigner(accountKey)
			if err != nil {
				return fmt.Errorf("invalid account key: %w", err)
			}

			client, ctx, done, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer done()

			resp, err := client.AuthenticateWith(ctx, account)
			if err != nil {
				return err
			}
			return newOutput(opts, cmd).keyValues(
				[2]string{"identity", hexutil.Encode(client.Identity())},
				[2]string{"address", resp.Address.String()},
			)
		},
	}
	cmd.Flags().StringVar(&accountKey, "account-key", "", "hex private key of the account to authenticate as")
	return cmd
}

func NewStoreCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "store [0x-document]",
		Short: "Store an encrypted document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(file, args)
			if err != nil {
				return err
			}

			client, ctx, done, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer done()

			count, err := client.StoreDocument(ctx, doc)
			if err != nil {
				return err
			}
			return newOutput(opts, cmd).keyValues(
				[2]string{"stored", fmt.Sprintf("%d bytes", len(doc))},
				[2]string{"count", fmt.Sprint(count)},
			)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file")
	return cmd
}

func readDocument(file string, args []string) ([]byte, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either --file or a document, not both")
	case file != "":
		return os.ReadFile(file)
	case len(args) == 1:
		doc, err := hexutil.Decode(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid document: %w", err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("a document is required")
	}
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the documents of the session's address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx, done, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer done()

			docs, err := client.ListDocuments(ctx)
			if err != nil {
				return err
			}
			return newOutput(opts, cmd).documents(docs)
		},
	}
}

func NewVerificationKeyCommand(opts *RootOptions) *cobra.Command {
	var purpose string

	cmd := &cobra.Command{
		Use:   "verification-key",
		Short: "Fetch the vault public key of a key purpose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := verificationKeyMethod(purpose)
			if err != nil {
				return err
			}

			client, ctx, done, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer done()

			var key []byte
			switch method {
			case rpc.SymmetricKeyVerificationKeyMethod:
				key, err = client.SymmetricKeyVerificationKey(ctx)
			default:
				key, err = client.IBEEncryptionKey(ctx)
			}
			if err != nil {
				return err
			}
			return newOutput(opts, cmd).keyValues(
				[2]string{"purpose", purpose},
				[2]string{"public_key", hexutil.Encode(key)},
			)
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "symmetric_key", "key purpose (symmetric_key|ibe_encryption)")
	return cmd
}

func NewDecryptionKeyCommand(opts *RootOptions) *cobra.Command {
	var purpose, transportKey string

	cmd := &cobra.Command{
		Use:   "decryption-key",
		Short: "Fetch the caller's key of a key purpose, encrypted under a transport key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := verificationKeyMethod(purpose); err != nil {
				return err
			}
			tpk, err := hexutil.Decode(transportKey)
			if err != nil {
				return fmt.Errorf("invalid transport key: %w", err)
			}

			client, ctx, done, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer done()

			var key []byte
			if purpose == "symmetric_key" {
				key, err = client.EncryptedSymmetricKey(ctx, tpk)
			} else {
				key, err = client.EncryptedIBEDecryptionKey(ctx, tpk)
			}
			if err != nil {
				return err
			}
			return newOutput(opts, cmd).keyValues(
				[2]string{"purpose", purpose},
				[2]string{"encrypted_key", hexutil.Encode(key)},
			)
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "symmetric_key", "key purpose (symmetric_key|ibe_encryption)")
	cmd.Flags().StringVar(&transportKey, "transport-key", "", "0x-hex transport public key")
	_ = cmd.MarkFlagRequired("transport-key")
	return cmd
}

func verificationKeyMethod(purpose string) (rpc.Method, error) {
	switch purpose {
	case "symmetric_key":
		return rpc.SymmetricKeyVerificationKeyMethod, nil
	case "ibe_encryption":
		return rpc.IBEEncryptionKeyMethod, nil
	default:
		return "", fmt.Errorf("unknown key purpose %q", purpose)
	}
}
