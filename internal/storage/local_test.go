package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxtour/ticket-gateway/internal/model"
)

func newTestStore(t *testing.T) *LocalStore {
	return NewLocalStore(t.TempDir(), "https://tickets.example.com", "test-secret")
}

func testAttachment(path string) *model.Attachment {
	return &model.Attachment{ID: 1, BookingID: 10, FileName: "tickets.pdf", StoragePath: path}
}

func TestLocalStore_PutGetExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	att := testAttachment("bookings/10/tickets.pdf")

	ok, err := s.Exists(ctx, att)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, att, []byte("%PDF-1.4 fake")))

	ok, err = s.Exists(ctx, att)
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := s.GetBytes(ctx, att)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), b)
}

func TestLocalStore_GetBytesMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBytes(context.Background(), testAttachment("bookings/10/missing.pdf"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLocalStore_PathTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBytes(context.Background(), testAttachment("../../etc/passwd"))
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestLocalStore_TemporaryURL(t *testing.T) {
	s := newTestStore(t)
	att := testAttachment("bookings/10/tickets.pdf")

	raw, err := s.GetTemporaryURL(context.Background(), att, time.Hour)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "https://tickets.example.com/files/"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	expires := u.Query().Get("expires")
	sig := u.Query().Get("sig")

	assert.NoError(t, s.VerifyToken(att.StoragePath, expires, sig))

	t.Run("tampered path", func(t *testing.T) {
		assert.ErrorIs(t, s.VerifyToken("bookings/11/other.pdf", expires, sig), ErrInvalidToken)
	})

	t.Run("tampered expiry", func(t *testing.T) {
		assert.ErrorIs(t, s.VerifyToken(att.StoragePath, "9999999999", sig), ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		raw, err := s.GetTemporaryURL(context.Background(), att, -time.Minute)
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		err = s.VerifyToken(att.StoragePath, u.Query().Get("expires"), u.Query().Get("sig"))
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}
