package crypto

// Watermark is the one-byte domain-separation tag prefixed (with the
// chain-id bytes) to signed payloads, preventing a signature produced for
// one operation kind from being replayed as another (spec.md §6, GLOSSARY).
type Watermark byte

const (
	WatermarkBlock       Watermark = 0x01
	WatermarkEndorsement Watermark = 0x02
	WatermarkGeneric     Watermark = 0x03
)

// Prefix returns watermark||chainID||payload, the bytes that are actually
// signed: the tag byte followed by the 4 chain-id bytes followed by the
// operation's own bytes.
func (w Watermark) Prefix(chainIDBytes, payload []byte) []byte {
	out := make([]byte, 0, 1+len(chainIDBytes)+len(payload))
	out = append(out, byte(w))
	out = append(out, chainIDBytes...)
	out = append(out, payload...)
	return out
}
