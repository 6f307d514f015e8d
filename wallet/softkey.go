package wallet

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/tolelom/tolbaker/crypto"
)

// SoftKeyProvider signs with an ed25519 private key held in process memory,
// loaded from an encrypted keystore file. It implements baker.KeyProvider
// without importing the baker package, exactly as spec.md §6 requires: the
// agent must never branch on whether it holds a software or hardware key.
type SoftKeyProvider struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey

	mu      sync.RWMutex
	chainID []byte // learned once from the node at startup, via SetChainID
}

// New wraps an already-loaded private key.
func New(priv crypto.PrivateKey) *SoftKeyProvider {
	return &SoftKeyProvider{priv: priv, pub: priv.Public()}
}

// Generate creates a SoftKeyProvider with a freshly generated key pair.
func Generate() (*SoftKeyProvider, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// Load decrypts the keystore at path with password.
func Load(path, password string) (*SoftKeyProvider, error) {
	priv, err := LoadKey(path, password)
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// Save encrypts and writes the key to path.
func (w *SoftKeyProvider) Save(path, password string) error {
	return SaveKey(path, password, w.priv)
}

// SetChainID records the chain-id bytes the controller decodes from the
// chain_id field of the first head it fetches. Sign refuses to operate
// until this has been called once, since watermarking without the real
// chain id would let a signature be replayed on a different chain.
func (w *SoftKeyProvider) SetChainID(chainID []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainID = append([]byte{}, chainID...)
}

// PublicKeyHash returns the base58check delegate address used as the
// "delegate=PKH" RPC query parameter (spec.md §6).
func (w *SoftKeyProvider) PublicKeyHash() string {
	return w.pub.KeyHash()
}

// Sign watermarks payload with wm and the chain-id bytes set by SetChainID,
// signs it, and returns both the raw signed bytes (payload||raw signature)
// and the base58-checked signature string the node's preapply/inject
// endpoints expect (spec.md §4.3, §6).
func (w *SoftKeyProvider) Sign(payload []byte, wm crypto.Watermark) (sbytes []byte, prefixSig string, err error) {
	w.mu.RLock()
	chainID := w.chainID
	w.mu.RUnlock()
	if len(chainID) == 0 {
		return nil, "", fmt.Errorf("sign: chain id not set, call SetChainID first")
	}

	watermarked := wm.Prefix(chainID, payload)
	sigHex := crypto.Sign(w.priv, watermarked)
	sigBytes, decErr := hex.DecodeString(sigHex)
	if decErr != nil {
		return nil, "", fmt.Errorf("sign: decode signature: %w", decErr)
	}

	sbytes = append(append([]byte{}, payload...), sigBytes...)
	prefixSig = crypto.Base58CheckEncode(sigBytes)
	return sbytes, prefixSig, nil
}
