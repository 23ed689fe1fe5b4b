package algorand

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/algorand/go-algorand-sdk/v2/types"
	bin "github.com/gagliardetto/binary"

	"github.com/algocheckout/checkout"
)

// MethodSignature renders name(args...)ret.
func MethodSignature(name string, args []string, returns string) string {
	return fmt.Sprintf("%s(%s)%s", name, strings.Join(args, ","), returns)
}

// MethodSelector returns the first SelectorLength bytes of the SHA-512/256
// digest of the method signature.
func MethodSelector(signature string) []byte {
	sum := sha512.Sum512_256([]byte(signature))
	out := make([]byte, SelectorLength)
	copy(out, sum[:SelectorLength])
	return out
}

// EncodeString writes a 2-byte big-endian length followed by the UTF-8 bytes.
func EncodeString(s string) ([]byte, error) {
	if len(s) > MaxStringLength {
		return nil, checkout.NewPaymentError(checkout.ErrCodeEncoding,
			fmt.Sprintf("string of %d bytes exceeds %d", len(s), MaxStringLength),
			map[string]interface{}{"length": len(s)})
	}
	if !utf8.ValidString(s) {
		return nil, checkout.NewPaymentError(checkout.ErrCodeEncoding, "string is not valid UTF-8", nil)
	}
	return encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint16(uint16(len(s)), binary.BigEndian); err != nil {
			return err
		}
		return enc.WriteBytes([]byte(s), false)
	})
}

// EncodeUint64 writes v as 8 big-endian bytes.
func EncodeUint64(v uint64) []byte {
	// bytes.Buffer writes never fail
	out, _ := encode(func(enc *bin.Encoder) error {
		return enc.WriteUint64(v, binary.BigEndian)
	})
	return out
}

// EncodeAddress decodes a checksummed account address into its 32 raw bytes.
func EncodeAddress(address string) ([]byte, error) {
	addr, err := types.DecodeAddress(address)
	if err != nil {
		return nil, checkout.WrapPaymentError(checkout.ErrCodeEncoding,
			fmt.Sprintf("invalid account address %q", address), err)
	}
	return encode(func(enc *bin.Encoder) error {
		return enc.WriteBytes(addr[:], false)
	})
}

func encode(write func(enc *bin.Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(bin.NewBinEncoder(&buf)); err != nil {
		return nil, checkout.WrapPaymentError(checkout.ErrCodeEncoding, "failed to write argument", err)
	}
	return buf.Bytes(), nil
}
