package oracletypes

import (
	"math/big"

	"golang.org/x/crypto/blake2b"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ss58Encode implements the SS58 address format: a network-format prefix byte (or
// two, for formats >= 64, not needed by any preset this oracle targets), the raw
// 32-byte public key, and a 2-byte checksum taken from the head of
// blake2b-512("SS58PRE" || prefix || key), all base58-encoded.
//
// Standard-library + golang.org/x/crypto use here is deliberate: no pack repo
// imports a dedicated ss58/subkey library, and the algorithm is a handful of lines
// once blake2b is available.
func ss58Encode(pub []byte, format uint16) string {
	payload := make([]byte, 0, 1+len(pub)+2)
	payload = append(payload, byte(format))
	payload = append(payload, pub...)

	h, _ := blake2b.New512(nil)
	h.Write([]byte("SS58PRE"))
	h.Write(payload)
	checksum := h.Sum(nil)

	payload = append(payload, checksum[:2]...)
	return base58Encode(payload)
}

func base58Encode(input []byte) string {
	x := new(big.Int).SetBytes(input)
	base := big.NewInt(58)
	zero := big.NewInt(0)
	mod := new(big.Int)

	var out []byte
	for x.Cmp(zero) > 0 {
		x.DivMod(x, base, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	// leading zero bytes become leading '1's
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	// reverse
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
