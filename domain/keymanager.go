package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
)

// NOTE:
// - seed_prefix takes the first 32 bytes of the BIP-39 seed as the private key.
//   This is not BIP-32 compatible; bip44 derives m/44'/60'/0'/0/0 style paths instead.
// - The BIP-39 passphrase is always empty.

type DerivationScheme string

const (
	SchemeSeedPrefix DerivationScheme = "seed_prefix"
	SchemeBIP44      DerivationScheme = "bip44"
)

const (
	// 128 bits of entropy => 12 words
	mnemonicEntropyBits = 128
	privateKeyLen       = 32
)

// KeyManager derives wallets from mnemonics and signs with the personal-message convention.
type KeyManager struct {
	scheme DerivationScheme
	path   []uint32
}

// NewKeyManager builds a KeyManager. path is only read for SchemeBIP44.
func NewKeyManager(scheme DerivationScheme, path string) (*KeyManager, error) {
	k := &KeyManager{scheme: scheme}
	switch scheme {
	case SchemeSeedPrefix:
	case SchemeBIP44:
		indices, err := parseDerivationPath(path)
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path: %w", err)
		}
		k.path = indices
	default:
		return nil, fmt.Errorf("unsupported derivation scheme %q", scheme)
	}
	return k, nil
}

// GenerateMnemonic returns a fresh 12-word phrase. Entropy comes from crypto/rand inside go-bip39.
func (k *KeyManager) GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer clearBytes(entropy)
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether phrase passes wordlist and checksum validation.
func (k *KeyManager) ValidateMnemonic(phrase string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(phrase))
}

// DeriveWallet deterministically maps phrase to a wallet.
func (k *KeyManager) DeriveWallet(phrase string) (entity.Wallet, error) {
	const op = "derive wallet"

	phrase = NormalizeMnemonic(phrase)
	if !bip39.IsMnemonicValid(phrase) {
		return entity.Wallet{}, wrapErrors.New(wrapErrors.CodeInvalidMnemonic, op, "mnemonic failed wordlist or checksum validation")
	}
	seed, err := bip39.NewSeedWithErrorChecking(phrase, "")
	if err != nil {
		return entity.Wallet{}, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidMnemonic, op, err)
	}
	defer clearBytes(seed)

	var priv []byte
	switch k.scheme {
	case SchemeBIP44:
		priv, err = deriveChildKey(seed, k.path)
		if err != nil {
			return entity.Wallet{}, wrapErrors.WrapWithCode(wrapErrors.CodeInternal, op, err)
		}
	default:
		priv = make([]byte, privateKeyLen)
		copy(priv, seed[:privateKeyLen])
	}

	addr, err := AddressOf(priv)
	if err != nil {
		clearBytes(priv)
		return entity.Wallet{}, wrapErrors.WrapWithCode(wrapErrors.CodeInternal, op, err)
	}
	return entity.Wallet{Address: addr, PrivateKey: priv}, nil
}

// AddressOf returns the checksummed address controlled by a raw private key.
func AddressOf(privateKey []byte) (string, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to convert to ecdsa: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// Sign produces a 65-byte [R || S || V] signature over the EIP-191 hash of message, V in {27, 28}.
func (k *KeyManager) Sign(privateKey []byte, message string) ([]byte, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeInvalidRequest, "sign message", err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeInternal, "sign message", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Verify recovers the signer of message and compares it to claimed, ignoring case.
// Malformed signatures yield false.
func (k *KeyManager) Verify(message string, signature []byte, claimed string) bool {
	if len(signature) != crypto.SignatureLength {
		return false
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return false
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	return strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), claimed)
}

// VerifyHex is Verify for a hex-encoded signature, with or without 0x.
func (k *KeyManager) VerifyHex(message, signatureHex, claimed string) bool {
	sig, err := DecodeHex(signatureHex)
	if err != nil {
		return false
	}
	return k.Verify(message, sig, claimed)
}

// NormalizeMnemonic collapses whitespace runs to single spaces.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

// EncodeHex renders bytes as 0x-prefixed hex.
func EncodeHex(b []byte) string {
	return hexutil.Encode(b)
}

// DecodeHex accepts hex with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// ---------- Helpers ----------
func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// deriveChildKey walks indices from the BIP-32 master of seed and returns the raw child key.
func deriveChildKey(seed []byte, indices []uint32) ([]byte, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	key := master
	for _, idx := range indices {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %w", err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get EC private key: %w", err)
	}
	return priv.Serialize(), nil
}

// parseDerivationPath accepts "m/44'/60'/0'/0/0" or "44'/60'/0'/0/0"
func parseDerivationPath(path string) ([]uint32, error) {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(p, "m/") || strings.HasPrefix(p, "M/") {
		p = p[2:]
	}
	if p == "" {
		return nil, errors.New("empty derivation path")
	}
	parts := strings.Split(p, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("invalid path segment")
		}
		hardened := strings.HasSuffix(part, "'")
		if hardened {
			part = strings.TrimSuffix(part, "'")
		}
		v, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, errors.New("invalid derivation index")
		}
		idx := uint32(v)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
