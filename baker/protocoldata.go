package baker

import (
	"encoding/hex"
	"fmt"
)

// powHeader is the fixed header constant every network in scope uses
// (spec.md §6 "Network presets").
const powHeader = "00000003"

// stampThreshold is 2^46-1, the first-8-bytes-as-big-endian-uint64 bound a
// candidate header's blake2b digest must be at or below (spec.md §6
// "Stamp threshold").
const stampThreshold uint64 = 70368744177663

// encodeProtocolData builds the hex protocol_data string spec.md §6
// describes: priority as big-endian u16 (4 hex chars), powHeaderHex
// right-padded to 8 hex chars, pow right-padded to 8 hex chars, then
// either "ff"+seed (seed right-padded to 64 hex chars) or "00".
func encodeProtocolData(priority int, powHeaderHex, pow, seedHex string) string {
	var b []byte
	b = append(b, padHex(fmt.Sprintf("%04x", uint16(priority)), 4)...)
	b = append(b, padHexRight(powHeaderHex, 8)...)
	b = append(b, padHexRight(pow, 8)...)
	if seedHex != "" {
		b = append(b, []byte("ff")...)
		b = append(b, padHexRight(seedHex, 64)...)
	} else {
		b = append(b, []byte("00")...)
	}
	return string(b)
}

// padHex left-pads s with '0' to width n (used only for the priority
// field, which is already exactly 4 characters from the %04x format but
// kept defensive against truncation).
func padHex(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}

// padHexRight right-pads s with '0' to width n, the convention spec.md §6
// uses for powHeader, pow, and seed.
func padHexRight(s string, n int) string {
	for len(s) < n {
		s = s + "0"
	}
	return s
}

// incrementPowCounter increments a 4-byte big-endian counter in place,
// carrying left on overflow (spec.md §4.6 "A 4-byte pow_counter region...
// is incremented as a big-endian integer: repeatedly, starting at the low
// byte, if the byte is 255 set it to 0 and carry left, otherwise increment
// and stop").
func incrementPowCounter(counter []byte) {
	for i := len(counter) - 1; i >= 0; i-- {
		if counter[i] == 0xff {
			counter[i] = 0
			continue
		}
		counter[i]++
		return
	}
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("baker: invalid hex literal %q: %v", s, err))
	}
	return b
}
