package baker

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"runtime"

	"golang.org/x/crypto/blake2b"
)

// syncBatchSize is how many attempts StampSearch makes before yielding
// back to the scheduler, so the search never starves the Controller's
// tick (spec.md §4.6 "Cooperative scheduling").
const syncBatchSize = 2000

// sigPlaceholderLen is the trailing zero-byte region that stands in for
// the eventual signature during stamp hashing (spec.md §4.6).
const sigPlaceholderLen = 64

// StampSearch finds a proof-of-work stamp for a candidate block header.
// forgedPrefixHex is the forged header hex with its trailing
// priority+powHeader+pow+seed-or-"00" placeholder already stripped
// (spec.md §4.4 step 7). It returns the full header bytes (forged prefix
// plus the winning protocol-data encoding), with the trailing signature
// placeholder dropped, ready to be signed.
//
// ctx is honored only at batch boundaries: cancellation takes effect
// within one syncBatchSize window, never mid-batch.
func StampSearch(ctx context.Context, forgedPrefixHex string, priority int, seedHex string) ([]byte, error) {
	prefix, err := hex.DecodeString(forgedPrefixHex)
	if err != nil {
		return nil, err
	}
	// The pow_counter region conceptually sits at
	// len(prefix) + 2 (priority) + 4 (powHeader) bytes into the buffer;
	// encodeProtocolData below reconstructs the same layout directly
	// rather than poking the buffer at that offset.
	counter := make([]byte, 4)

	attempts := 0
	for {
		powHex := hex.EncodeToString(counter)
		protoData := encodeProtocolData(priority, powHeader, powHex, seedHex)
		protoBytes := mustDecodeHex(protoData)

		buf := make([]byte, 0, len(prefix)+len(protoBytes)+sigPlaceholderLen)
		buf = append(buf, prefix...)
		buf = append(buf, protoBytes...)
		buf = append(buf, make([]byte, sigPlaceholderLen)...)

		if passesStamp(buf) {
			return buf[:len(buf)-sigPlaceholderLen], nil
		}

		incrementPowCounter(counter)

		attempts++
		if attempts%syncBatchSize == 0 {
			runtime.Gosched()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
	}
}

// passesStamp reports whether the first 8 bytes of blake2b-256(header),
// read as a big-endian uint64, are at or below stampThreshold
// (spec.md §4.6, §8 property 3).
func passesStamp(header []byte) bool {
	sum := blake2b.Sum256(header)
	return binary.BigEndian.Uint64(sum[:8]) <= stampThreshold
}
