// Copyright 2025 Certen Protocol
//
// Package identity manages the engine's signing identity: an operator-
// owned secp256k1 key, an Ed25519 signing key derived from it via HKDF,
// and password-based encryption of the key material at rest.
//
// Identity exclusively owns private key material. No other package may
// read a raw key; everything else calls Identity.Sign / Identity.Verify.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// Sentinel errors for identity operations.
var (
	ErrNoOperatorKey  = errors.New("identity: no operator secp256k1 key loaded")
	ErrDecryptFailed  = errors.New("identity: key decryption failed (wrong password or corrupt file)")
	ErrInvalidKeyFile = errors.New("identity: invalid key file format")
)

// hkdfInfo domain-separates the Ed25519 seed derivation so a secp256k1 key
// used elsewhere (e.g. an Ethereum adapter signer) never collides with the
// engine's own signing key.
const hkdfInfo = "certen-sovereign-engine/ed25519-signing-key/v1"

// Identity holds the engine's derived Ed25519 signing key. The underlying
// secp256k1 key is zeroed after derivation; Identity never exposes it.
type Identity struct {
	validatorID string
	public      ed25519.PublicKey
	private     ed25519.PrivateKey
}

// New derives an Identity from a 32-byte secp256k1 private key. The caller
// is responsible for zeroing secpKey after this call returns.
func New(validatorID string, secpKey []byte) (*Identity, error) {
	if len(secpKey) != 32 {
		return nil, fmt.Errorf("identity: secp256k1 key must be 32 bytes, got %d", len(secpKey))
	}
	// Validate it parses as a real secp256k1 scalar before using it as HKDF
	// input keying material — this is what ties the derived Ed25519 key to
	// an operator-owned secp256k1 identity rather than arbitrary bytes.
	if _, err := crypto.ToECDSA(secpKey); err != nil {
		return nil, fmt.Errorf("identity: invalid secp256k1 key: %w", err)
	}

	seedReader := hkdf.New(sha256.New, secpKey, nil, []byte(hkdfInfo))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(seedReader, seed); err != nil {
		return nil, fmt.Errorf("identity: hkdf derive: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Identity{
		validatorID: validatorID,
		public:      priv.Public().(ed25519.PublicKey),
		private:     priv,
	}, nil
}

// Generate creates a brand new operator secp256k1 key and derives an
// Identity from it, returning both so the caller can persist the
// secp256k1 key (encrypted) for recovery.
func Generate(validatorID string) (*Identity, []byte, error) {
	secpKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("identity: generate secp256k1 key: %w", err)
	}
	raw := crypto.FromECDSA(secpKey)
	id, err := New(validatorID, raw)
	if err != nil {
		return nil, nil, err
	}
	return id, raw, nil
}

// ValidatorID returns the configured validator/node identifier.
func (id *Identity) ValidatorID() string { return id.validatorID }

// PublicKey returns the Ed25519 public key.
func (id *Identity) PublicKey() ed25519.PublicKey { return id.public }

// PublicKeyHex returns the hex-encoded Ed25519 public key.
func (id *Identity) PublicKeyHex() string { return hex.EncodeToString(id.public) }

// Sign signs an arbitrary message (the caller is expected to have already
// hashed/canonicalized it, e.g. via pkg/canon).
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.private, message)
}

// Verify checks a signature against this identity's public key.
func (id *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(id.public, message, signature)
}

// VerifyWith checks a signature against an arbitrary public key, used to
// verify signatures produced by other nodes/contributors.
func VerifyWith(publicKey ed25519.PublicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// ---- at-rest encryption of the secp256k1 key material ----

const (
	pbkdf2Iterations = 310_000 // OWASP 2023 guidance floor for PBKDF2-HMAC-SHA256
	saltSize         = 16
	nonceSize        = 12
)

// EncryptedKeyFile is the on-disk representation of a password-wrapped
// secp256k1 key.
type EncryptedKeyFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Iterations int    `json:"iterations"`
}

// Encrypt wraps a raw secp256k1 key with a password using PBKDF2-derived
// AES-256-GCM: salt plus a PBKDF2 KDF, keeping the key encrypted at rest.
func Encrypt(rawKey []byte, password string) (*EncryptedKeyFile, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("identity: generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)

	block, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("identity: generate nonce: %w", err)
	}
	ciphertext := block.Seal(nil, nonce, rawKey, nil)

	return &EncryptedKeyFile{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		Iterations: pbkdf2Iterations,
	}, nil
}

// Decrypt recovers the raw secp256k1 key from an EncryptedKeyFile.
func Decrypt(f *EncryptedKeyFile, password string) ([]byte, error) {
	if len(f.Salt) != saltSize || len(f.Nonce) != nonceSize {
		return nil, ErrInvalidKeyFile
	}
	iterations := f.Iterations
	if iterations <= 0 {
		iterations = pbkdf2Iterations
	}
	key := pbkdf2.Key([]byte(password), f.Salt, iterations, 32, sha256.New)

	block, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	raw, err := block.Open(nil, f.Nonce, f.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return raw, nil
}

// Gate authorizes destructive operations (kill-switch reset, karma wallet
// migration, learning overlay replacement) against the operator identity.
// Supplemented from original_source/engine/core/identity_gate.py.
type Gate struct {
	operatorPublicKeyHex string
}

// NewGate creates a Gate that only authorizes actors presenting the given
// operator public key.
func NewGate(operatorPublicKeyHex string) *Gate {
	return &Gate{operatorPublicKeyHex: operatorPublicKeyHex}
}

// Authorize returns nil if actorPublicKeyHex matches the configured
// operator key, else an error naming the attempted actor.
func (g *Gate) Authorize(actorPublicKeyHex string) error {
	if g.operatorPublicKeyHex == "" {
		return ErrNoOperatorKey
	}
	if actorPublicKeyHex != g.operatorPublicKeyHex {
		return fmt.Errorf("identity: actor %s is not the authorized operator", actorPublicKeyHex)
	}
	return nil
}
