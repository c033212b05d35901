package sign

import (
	"encoding/json"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureJSON(t *testing.T) {
	sig := Signature{0x01, 0x02, 0xab}

	data, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.Equal(t, `"0x0102ab"`, string(data))

	var decoded Signature
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sig, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"0102"`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`12`), &decoded))
}

func TestEthereumSigner(t *testing.T) {
	_, err := NewEthereumSigner("not-a-key")
	require.Error(t, err)

	signer, err := NewEthereumSigner(testKeyHex)
	require.NoError(t, err)

	sig, err := signer.Sign(ethcrypto.Keccak256([]byte("payload")))
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	_, err = signer.Sign([]byte("short"))
	assert.Error(t, err)

	clone, err := NewEthereumSigner(signer.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), clone.Address())
}
