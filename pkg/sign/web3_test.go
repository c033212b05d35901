package sign

import (
	"crypto/ecdsa"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"

// expectedAddress hashes the prefixed uncompressed key by hand.
func expectedAddress(pub *ecdsa.PublicKey) Web3Address {
	raw := append([]byte{0x04}, pub.X.FillBytes(make([]byte, 32))...)
	raw = append(raw, pub.Y.FillBytes(make([]byte, 32))...)
	var a Web3Address
	copy(a[:], ethcrypto.Keccak256(raw)[12:])
	return a
}

func signIdentity(t *testing.T, signer *EthereumSigner, identity []byte) Signature {
	t.Helper()
	sig, err := signer.Sign(ethcrypto.Keccak256(identity))
	require.NoError(t, err)
	return sig
}

func TestRecoverWeb3Address(t *testing.T) {
	signer, err := NewEthereumSigner(testKeyHex)
	require.NoError(t, err)
	identity := []byte("identity-A")

	sig := signIdentity(t, signer, identity)
	addr, err := RecoverWeb3Address(identity, sig)
	require.NoError(t, err)

	want := expectedAddress(signer.PublicKey())
	assert.Equal(t, want, addr)
	assert.Equal(t, want, signer.Address())
	assert.NotEqual(t, ethcrypto.PubkeyToAddress(*signer.PublicKey()).Bytes(), addr.Bytes())

	t.Run("deterministic", func(t *testing.T) {
		again, err := RecoverWeb3Address(identity, sig)
		require.NoError(t, err)
		assert.Equal(t, addr, again)
	})

	t.Run("input untouched", func(t *testing.T) {
		before := append(Signature{}, sig...)
		_, err := RecoverWeb3Address(identity, sig)
		require.NoError(t, err)
		assert.Equal(t, before, sig)
	})

	t.Run("raw recovery id", func(t *testing.T) {
		raw := append(Signature{}, sig...)
		raw[64] -= 27
		got, err := RecoverWeb3Address(identity, raw)
		require.NoError(t, err)
		assert.Equal(t, addr, got)
	})

	t.Run("other identity recovers elsewhere", func(t *testing.T) {
		got, err := RecoverWeb3Address([]byte("identity-B"), sig)
		if err == nil {
			assert.NotEqual(t, addr, got)
		}
	})
}

func TestRecoverWeb3Address_RandomKeys(t *testing.T) {
	for i := 0; i < 8; i++ {
		signer, err := GenerateEthereumSigner()
		require.NoError(t, err)
		identity := signer.Address().Bytes()

		addr, err := RecoverWeb3Address(identity, signIdentity(t, signer, identity))
		require.NoError(t, err)
		assert.Equal(t, expectedAddress(signer.PublicKey()), addr)
	}
}

func TestRecoverWeb3Address_Errors(t *testing.T) {
	signer, err := NewEthereumSigner(testKeyHex)
	require.NoError(t, err)
	identity := []byte("identity-A")
	valid := signIdentity(t, signer, identity)

	withV := func(v byte) Signature {
		sig := append(Signature{}, valid...)
		sig[64] = v
		return sig
	}
	withRS := func(r, s byte) Signature {
		sig := make(Signature, SignatureLength)
		sig[31], sig[63], sig[64] = r, s, 27
		return sig
	}
	curveOrder := ethcrypto.S256().Params().N.FillBytes(make([]byte, 32))

	tests := []struct {
		name string
		sig  Signature
		err  error
	}{
		{"empty", Signature{}, ErrInvalidSignatureLength},
		{"compact only", valid[:64], ErrInvalidSignatureLength},
		{"too long", append(append(Signature{}, valid...), 0), ErrInvalidSignatureLength},
		{"zero r", withRS(0, 1), ErrRecoveryFailed},
		{"zero s", withRS(1, 0), ErrRecoveryFailed},
		{"zero r and s", withRS(0, 0), ErrRecoveryFailed},
		{"r equals curve order", append(append(append(Signature{}, curveOrder...), valid[32:64]...), 27), ErrMalformedSignature},
		{"s equals curve order", append(append(append(Signature{}, valid[:32]...), curveOrder...), 27), ErrMalformedSignature},
		{"v 2", withV(2), ErrInvalidRecoveryID},
		{"v 26", withV(26), ErrInvalidRecoveryID},
		{"v 29", withV(29), ErrInvalidRecoveryID},
		{"v 255", withV(255), ErrInvalidRecoveryID},
		{"r off curve", withRS(5, 1), ErrRecoveryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverWeb3Address(identity, tt.sig)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNormalizeRecoveryID(t *testing.T) {
	tests := []struct {
		in      byte
		out     byte
		wantErr bool
	}{
		{27, 0, false},
		{28, 1, false},
		{0, 0, false},
		{1, 1, false},
		{2, 0, true},
		{26, 0, true},
		{29, 0, true},
		{100, 0, true},
	}

	for _, tt := range tests {
		got, err := NormalizeRecoveryID(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRecoveryID, "v=%d", tt.in)
			continue
		}
		require.NoError(t, err, "v=%d", tt.in)
		assert.Equal(t, tt.out, got, "v=%d", tt.in)
	}
}

func TestWeb3AddressText(t *testing.T) {
	signer, err := GenerateEthereumSigner()
	require.NoError(t, err)
	addr := signer.Address()

	text, err := addr.MarshalText()
	require.NoError(t, err)
	assert.Len(t, text, 42)

	var parsed Web3Address
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, addr, parsed)
	assert.False(t, parsed.IsZero())

	_, err = HexToWeb3Address("0x1234")
	assert.Error(t, err)
	_, err = HexToWeb3Address("nothex")
	assert.Error(t, err)
}
