package wallet

import (
	"path/filepath"
	"testing"

	"github.com/tolelom/tolbaker/crypto"
)

func TestGenerateSaveLoadRoundTrip(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "baker.key")
	if err := w.Save(path, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, "s3cret")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.PublicKeyHash() != w.PublicKeyHash() {
		t.Errorf("key hash mismatch after reload: got %s want %s", loaded.PublicKeyHash(), w.PublicKeyHash())
	}
}

func TestLoadWrongPassword(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "baker.key")
	if err := w.Save(path, "right-password"); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, "wrong-password"); err == nil {
		t.Error("expected error loading keystore with wrong password")
	}
}

func TestSignRequiresChainID(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.Sign([]byte("payload"), crypto.WatermarkEndorsement); err == nil {
		t.Error("expected Sign to fail before SetChainID is called")
	}
}

func TestSignAfterSetChainID(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	w.SetChainID([]byte{0x01, 0x02, 0x03, 0x04})

	sbytes, prefixSig, err := w.Sign([]byte("forged-operation-bytes"), crypto.WatermarkEndorsement)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sbytes) == 0 {
		t.Error("expected non-empty signed bytes")
	}
	if prefixSig == "" {
		t.Error("expected non-empty prefixed signature")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.key"), "pw"); err == nil {
		t.Error("expected error loading nonexistent keystore")
	}
}
