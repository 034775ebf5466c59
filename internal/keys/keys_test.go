package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

const knownPrivHex = "7f7ff03d123792d6ac594bfa67bf6d0c0ab55b6b1fdb6249303fe861f1ccba9a"
const knownNsec = "nsec10allq0gjx7fddtzef0ax00mdps9t2kmtrldkyjfs8l5xruwvh2dq0lhhkp"

func TestFromPrivateKeyHexKnownAnswer(t *testing.T) {
	kp, err := FromPrivateKeyHex(PrivateKeyHex(knownPrivHex))
	if err != nil {
		t.Fatalf("from hex: %v", err)
	}
	nsec, err := kp.Nsec()
	if err != nil {
		t.Fatalf("nsec: %v", err)
	}
	if string(nsec) != knownNsec {
		t.Fatalf("nsec mismatch:\n got %s\nwant %s", nsec, knownNsec)
	}
}

func TestFromPrivateKeyHexRejectsUppercase(t *testing.T) {
	upper := "7F7FF03D123792D6AC594BFA67BF6D0C0AB55B6B1FDB6249303FE861F1CCBA9A"
	if _, err := FromPrivateKeyHex(PrivateKeyHex(upper)); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
	}
}

func TestPublicKeyIsDerivedFromPrivate(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := DerivePublicKey(kp.PrivateKeyBytes())
	if err != nil {
		t.Fatalf("derive public: %v", err)
	}
	if !bytes.Equal(pub, kp.PublicKeyBytes()) {
		t.Fatal("public key does not match derivation from private key")
	}
}

func TestBech32RoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	nsec, err := kp.Nsec()
	if err != nil {
		t.Fatalf("encode nsec: %v", err)
	}
	priv, err := DecodeNsec(nsec)
	if err != nil {
		t.Fatalf("decode nsec: %v", err)
	}
	if !bytes.Equal(priv, kp.PrivateKeyBytes()) {
		t.Fatal("nsec round trip lost bytes")
	}

	npub, err := kp.Npub()
	if err != nil {
		t.Fatalf("encode npub: %v", err)
	}
	pub, err := DecodeNpub(npub)
	if err != nil {
		t.Fatalf("decode npub: %v", err)
	}
	if !bytes.Equal(pub, kp.PublicKeyBytes()) {
		t.Fatal("npub round trip lost bytes")
	}
}

func TestDecodeRejectsWrongPrefix(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	npub, err := kp.Npub()
	if err != nil {
		t.Fatalf("encode npub: %v", err)
	}
	if _, err := DecodeNsec(Nsec(npub)); !errors.Is(err, ErrWrongPrefix) {
		t.Fatalf("expected ErrWrongPrefix feeding npub to nsec decoder, got %v", err)
	}
	nsec, err := kp.Nsec()
	if err != nil {
		t.Fatalf("encode nsec: %v", err)
	}
	if _, err := DecodeNpub(Npub(nsec)); !errors.Is(err, ErrWrongPrefix) {
		t.Fatalf("expected ErrWrongPrefix feeding nsec to npub decoder, got %v", err)
	}
}

func TestZeroWipesKeyMaterial(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	kp.Zero()
	raw := kp.PrivateKeyBytes()
	if !bytes.Equal(raw, make([]byte, 32)) {
		t.Fatal("private key bytes survived Zero")
	}
}

func TestRejectsInvalidScalars(t *testing.T) {
	if _, err := FromPrivateKeyBytes(make([]byte, 32)); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected rejection of all-zero key, got %v", err)
	}
	if _, err := FromPrivateKeyBytes(make([]byte, 31)); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Fatalf("expected rejection of short key, got %v", err)
	}
}

func TestHexProjectionIsLowercase64(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	h := string(kp.PrivateKeyHex())
	if len(h) != 64 {
		t.Fatalf("unexpected hex length %d", len(h))
	}
	if _, err := hex.DecodeString(h); err != nil {
		t.Fatalf("not valid hex: %v", err)
	}
}
