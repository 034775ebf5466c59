package mnemonic

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/PlebeiusGaragicus/plebtap/internal/keys"
)

// NIP-06 derivation path: m/44'/1237'/account'/0/0.
const (
	purposeIndex  = 44
	coinTypeIndex = 1237
)

// DeriveKeyPair stretches the phrase (plus optional passphrase) into a BIP-39
// seed and walks the NIP-06 path to the leaf signing key. The same inputs
// always produce the same key; that determinism is what makes the phrase a
// complete backup.
func DeriveKeyPair(phrase, passphrase string, account uint32) (*keys.KeyPair, error) {
	normalized := Normalize(phrase)
	if !Validate(normalized) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(normalized, passphrase)
	defer zeroBytes(seed)

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	path := []uint32{
		hdkeychain.HardenedKeyStart + purposeIndex,
		hdkeychain.HardenedKeyStart + coinTypeIndex,
		hdkeychain.HardenedKeyStart + account,
		0,
		0,
	}
	node := master
	for _, childIndex := range path {
		child, err := node.Derive(childIndex)
		if node != master {
			node.Zero()
		}
		if err != nil {
			return nil, err
		}
		node = child
	}
	defer node.Zero()

	leafPriv, err := node.ECPrivKey()
	if err != nil {
		return nil, err
	}
	raw := leafPriv.Serialize()
	defer zeroBytes(raw)
	leafPriv.Zero()

	return keys.FromPrivateKeyBytes(raw)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
