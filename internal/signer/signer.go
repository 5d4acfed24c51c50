// Package signer holds the client keypair and produces signed call envelopes.
//
// An envelope is a JWT signed with EdDSA. Its subject is the sender address,
// its id is a random nonce, and its payload binds the call to a network and a
// gas budget. The envelope digest (sha256 of the token) identifies the
// submission on the ledger, so resending the same token never executes twice.
package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidKey      = errors.New("invalid signing key")
	ErrInvalidEnvelope = errors.New("invalid call envelope")
	ErrRejected        = errors.New("signature request rejected")
)

const keyFileMode = 0o600

// ApprovalFunc decides whether a call may be signed. Returning false declines it.
type ApprovalFunc func(ctx context.Context, call economy.Call) bool

// Claims is the JWT payload of a call envelope.
type Claims struct {
	PublicKey string       `json:"pk"`
	Network   string       `json:"net"`
	GasBudget uint64       `json:"gas"`
	Call      economy.Call `json:"call"`
	jwt.RegisteredClaims
}

// Envelope is a signed call ready for submission.
type Envelope struct {
	Token  string
	Digest string
}

// Option configures a Signer.
type Option func(*Signer)

// WithApproval installs a hook consulted before every signature.
func WithApproval(approve ApprovalFunc) Option {
	return func(signer *Signer) {
		signer.approve = approve
	}
}

// WithClock replaces the clock used for the issued-at claim.
func WithClock(now func() time.Time) Option {
	return func(signer *Signer) {
		signer.now = now
	}
}

// Signer signs envelopes for one address.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    economy.Address
	approve    ApprovalFunc
	now        func() time.Time
}

// New wraps an ed25519 private key.
func New(privateKey ed25519.PrivateKey, options ...Option) (*Signer, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(privateKey))
	}
	publicKey, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected public key type", ErrInvalidKey)
	}
	signer := &Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		address:    economy.AddressFromPublicKey(publicKey),
		now:        time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(signer)
		}
	}
	return signer, nil
}

// FromSeedHex builds a Signer from a hex-encoded 32-byte seed.
func FromSeedHex(seedHex string, options ...Option) (*Signer, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: expected %d byte seed, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	return New(ed25519.NewKeyFromSeed(seed), options...)
}

// LoadOrCreate reads a hex seed from path, generating and persisting a new one when the file is absent.
func LoadOrCreate(path string, options ...Option) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return FromSeedHex(string(raw), options...)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)+"\n"), keyFileMode); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return New(ed25519.NewKeyFromSeed(seed), options...)
}

// Address returns the account controlled by this key.
func (signer *Signer) Address() economy.Address {
	return signer.address
}

// PublicKeyHex returns the hex-encoded public key.
func (signer *Signer) PublicKeyHex() string {
	return hex.EncodeToString(signer.publicKey)
}

// Sign produces an envelope for call. A declined approval yields ErrRejected.
func (signer *Signer) Sign(ctx context.Context, call economy.Call, network string, gasBudget uint64) (Envelope, error) {
	if signer.approve != nil && !signer.approve(ctx, call) {
		return Envelope{}, fmt.Errorf("%w: %s", ErrRejected, call.Kind)
	}
	claims := Claims{
		PublicKey: signer.PublicKeyHex(),
		Network:   network,
		GasBudget: gasBudget,
		Call:      call,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  signer.address.String(),
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(signer.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(signer.privateKey)
	if err != nil {
		return Envelope{}, fmt.Errorf("sign envelope: %w", err)
	}
	return Envelope{Token: token, Digest: Digest(token)}, nil
}

// Digest returns the submission digest of an envelope token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify checks the envelope signature against its embedded key and that the
// key controls the subject address, then returns the submission it carries.
func Verify(token string) (economy.Submission, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(parsedToken *jwt.Token) (interface{}, error) {
		claims, ok := parsedToken.Claims.(*Claims)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidEnvelope)
		}
		publicKey, err := hex.DecodeString(claims.PublicKey)
		if err != nil || len(publicKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: malformed public key", ErrInvalidEnvelope)
		}
		return ed25519.PublicKey(publicKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		if errors.Is(err, ErrInvalidEnvelope) {
			return economy.Submission{}, err
		}
		return economy.Submission{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return economy.Submission{}, fmt.Errorf("%w: invalid token", ErrInvalidEnvelope)
	}
	if strings.TrimSpace(claims.ID) == "" {
		return economy.Submission{}, fmt.Errorf("%w: missing nonce", ErrInvalidEnvelope)
	}
	sender, err := economy.NewAddress(claims.Subject)
	if err != nil {
		return economy.Submission{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	publicKey, _ := hex.DecodeString(claims.PublicKey)
	if economy.AddressFromPublicKey(publicKey) != sender {
		return economy.Submission{}, fmt.Errorf("%w: key does not control %s", ErrInvalidEnvelope, sender)
	}
	return economy.Submission{
		Digest:    Digest(token),
		Sender:    sender,
		Network:   claims.Network,
		GasBudget: claims.GasBudget,
		Call:      claims.Call,
	}, nil
}
