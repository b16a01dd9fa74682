package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DevWallet is a file-backed development wallet. Its account address and
// message signatures are derived deterministically from a single 32-byte
// secret, so the same key file always lands on the same messaging identity.
// It stands in for the platform's wallet bridge when running the console
// directly.
type DevWallet struct {
	secret  []byte
	address string
}

// LoadWallet reads the wallet secret from path, generating and persisting a
// fresh one on first run.
func LoadWallet(path string) (*DevWallet, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		secret, derr := hex.DecodeString(strings.TrimSpace(string(data)))
		if derr != nil {
			return nil, fmt.Errorf("wallet key %s: %w", path, derr)
		}
		if len(secret) != 32 {
			return nil, fmt.Errorf("wallet key %s: want 32 bytes, got %d", path, len(secret))
		}
		return newDevWallet(secret), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("wallet key %s: %w", path, err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate wallet key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create wallet key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(secret)+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("write wallet key %s: %w", path, err)
	}
	return newDevWallet(secret), nil
}

func newDevWallet(secret []byte) *DevWallet {
	sum := sha256.Sum256(append([]byte("greenroom dev wallet:"), secret...))
	return &DevWallet{
		secret:  secret,
		address: "0x" + hex.EncodeToString(sum[:20]),
	}
}

// Address returns the wallet's derived account address.
func (w *DevWallet) Address() string { return w.address }

// SignMessage returns a deterministic MAC over the message. A real wallet
// produces an ECDSA signature here; the messaging layer only needs the
// result to be stable per wallet and message.
func (w *DevWallet) SignMessage(ctx context.Context, message string) (any, error) {
	mac := hmac.New(sha256.New, w.secret)
	mac.Write([]byte(message))
	return mac.Sum(nil), nil
}
