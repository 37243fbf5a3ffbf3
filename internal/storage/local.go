package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
)

var (
	ErrFileNotFound  = errors.New("attachment file not found")
	ErrInvalidToken  = errors.New("download token is invalid")
	ErrTokenExpired  = errors.New("download token has expired")
	ErrPathTraversal = errors.New("storage path escapes the storage root")
)

// LocalStore keeps attachment files on local disk and hands out short-lived
// signed download URLs. Vendors fetch media through those URLs, so storage
// itself is never exposed.
type LocalStore struct {
	root          string
	publicBaseURL string
	secret        []byte
}

func NewLocalStore(root, publicBaseURL, secret string) *LocalStore {
	return &LocalStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		secret:        []byte(secret),
	}
}

// resolve maps a storage path onto the root, refusing anything that walks
// out of it.
func (s *LocalStore) resolve(storagePath string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(storagePath))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrPathTraversal
	}
	return full, nil
}

func (s *LocalStore) Exists(ctx context.Context, a *model.Attachment) (bool, error) {
	full, err := s.resolve(a.StoragePath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *LocalStore) GetBytes(ctx context.Context, a *model.Attachment) ([]byte, error) {
	full, err := s.resolve(a.StoragePath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, ErrFileNotFound
	}
	return b, err
}

func (s *LocalStore) Put(ctx context.Context, a *model.Attachment, data []byte) error {
	full, err := s.resolve(a.StoragePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// GetTemporaryURL returns a signed public URL valid until the ttl elapses.
// The signature covers path and expiry, so neither can be swapped.
func (s *LocalStore) GetTemporaryURL(ctx context.Context, a *model.Attachment, ttl time.Duration) (string, error) {
	if _, err := s.resolve(a.StoragePath); err != nil {
		return "", err
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(a.StoragePath, expires)
	return fmt.Sprintf("%s/files/%s?expires=%d&sig=%s",
		s.publicBaseURL, a.StoragePath, expires, sig), nil
}

// VerifyToken checks a download request produced by GetTemporaryURL.
func (s *LocalStore) VerifyToken(storagePath, expiresStr, sig string) error {
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	expected := s.sign(storagePath, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidToken
	}
	if time.Now().Unix() > expires {
		return ErrTokenExpired
	}
	return nil
}

func (s *LocalStore) sign(storagePath string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(storagePath))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
