package library

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"reelhouse/internal/services"
	"reelhouse/internal/sqlitex"
)

const tokenInfo = "reelhouse callback v1"

// minSecretLength is the shortest callback secret accepted.
const minSecretLength = 16

// Signer issues and verifies per-asset callback tokens.
type Signer struct {
	key []byte
}

// NewSigner derives the token key from secret.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLength {
		return nil, services.Wrap(services.ErrConfiguration, "library", "callback token",
			fmt.Sprintf("library.callback_secret must be at least %d characters", minSecretLength), nil)
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(tokenInfo)), key); err != nil {
		return nil, fmt.Errorf("derive callback key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Token returns the hex HMAC over the asset's stable identity fields.
func (s *Signer) Token(asset *Asset) string {
	mac := hmac.New(sha256.New, s.key)
	_, _ = io.WriteString(mac, tokenMessage(asset))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether token was issued for asset.
func (s *Signer) Verify(asset *Asset, token string) bool {
	given, err := hex.DecodeString(strings.TrimSpace(token))
	if err != nil || len(given) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	_, _ = io.WriteString(mac, tokenMessage(asset))
	return hmac.Equal(given, mac.Sum(nil))
}

func tokenMessage(asset *Asset) string {
	return fmt.Sprintf("asset:%d:%s:%s", asset.ID, asset.TriagePath, sqlitex.FormatTime(asset.CreatedAt))
}
