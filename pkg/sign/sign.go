package sign

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Signer signs 32-byte hashes on behalf of one Web3Address.
type Signer interface {
	Address() Web3Address
	Sign(hash []byte) (Signature, error)
}

// Signature is a raw 65-byte [r || s || v] signature. It travels as a 0x-hex string.
type Signature []byte

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

func (s Signature) String() string {
	return hexutil.Encode(s)
}
