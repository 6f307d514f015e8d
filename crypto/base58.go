package crypto

import (
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// checksumLen is the trailing checksum size used by base58check, per the
// conventional Bitcoin-style encoding that Tezos-family addressing reuses.
const checksumLen = 4

var (
	errBase58Short    = errors.New("base58check: payload too short")
	errBase58Checksum = errors.New("base58check: checksum mismatch")
)

// Base58CheckEncode base58-encodes payload with a 4-byte double-sha256
// checksum appended, the form spec.md §6 expects for seed_nonce_hash and
// key-hash addresses.
func Base58CheckEncode(payload []byte) string {
	sum := doubleSHA256(payload)
	full := make([]byte, 0, len(payload)+checksumLen)
	full = append(full, payload...)
	full = append(full, sum[:checksumLen]...)
	return base58.Encode(full)
}

// Base58CheckDecode reverses Base58CheckEncode, verifying the checksum.
func Base58CheckDecode(s string) ([]byte, error) {
	full, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(full) < checksumLen {
		return nil, errBase58Short
	}
	payload := full[:len(full)-checksumLen]
	want := full[len(full)-checksumLen:]
	got := doubleSHA256(payload)
	for i := range want {
		if want[i] != got[i] {
			return nil, errBase58Checksum
		}
	}
	return payload, nil
}

func doubleSHA256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
