package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/vncsmyrnk/taskboard/internal/config"
	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

var _ ports.CSRFSigner = (*CSRFSigner)(nil)

const csrfNonceSize = 16

// CSRFSigner issues tokens of the form nonce.mac where mac is
// HMAC-SHA256(secret, user id | nonce). A token is only valid for the
// identity it was issued to.
type CSRFSigner struct {
	secret  []byte
	enabled bool
}

func NewCSRFSigner(settings *config.Settings) *CSRFSigner {
	return &CSRFSigner{
		secret:  []byte(settings.CSRFSecret),
		enabled: settings.CSRFEnabled,
	}
}

func (s *CSRFSigner) Enabled() bool {
	return s.enabled
}

func (s *CSRFSigner) Issue(id domain.Identity) (string, error) {
	if !s.enabled {
		return "", nil
	}

	nonce := make([]byte, csrfNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate csrf nonce: %w", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(nonce) + "." + enc.EncodeToString(s.mac(id, nonce)), nil
}

func (s *CSRFSigner) Verify(id domain.Identity, token string) error {
	if !s.enabled {
		return nil
	}

	noncePart, macPart, ok := strings.Cut(token, ".")
	if !ok || noncePart == "" || macPart == "" {
		return domain.ErrCSRFMismatch
	}

	enc := base64.RawURLEncoding
	nonce, err := enc.DecodeString(noncePart)
	if err != nil || len(nonce) != csrfNonceSize {
		return domain.ErrCSRFMismatch
	}
	got, err := enc.DecodeString(macPart)
	if err != nil {
		return domain.ErrCSRFMismatch
	}

	if !hmac.Equal(got, s.mac(id, nonce)) {
		return domain.ErrCSRFMismatch
	}
	return nil
}

func (s *CSRFSigner) mac(id domain.Identity, nonce []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(id.UserID.String()))
	h.Write([]byte{'|'})
	h.Write(nonce)
	return h.Sum(nil)
}
