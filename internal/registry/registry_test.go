package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(opts ...Option) (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("conn-%d", n) }),
	}
	return New(NewMemoryStore(), append(base, opts...)...), clock
}

type stubRefresher struct {
	tokens Tokens
	err    error
	calls  int
}

func (s *stubRefresher) RefreshTokens(_ context.Context, _ string) (Tokens, error) {
	s.calls++
	return s.tokens, s.err
}

type failingStore struct{ MemoryStore }

func (*failingStore) Get(context.Context, string) (*Record, error) {
	return nil, errors.New("connection refused")
}

func TestUpsert_CreatesActiveRecord(t *testing.T) {
	ctx := context.Background()
	reg, clock := newTestRegistry()

	rec, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t1", ExpiresIn: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, "conn-1", rec.ConnectionID)
	assert.Equal(t, "a@b.com", rec.UserEmail)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, clock.Now().Add(time.Hour), rec.ExpiresAt)
	assert.True(t, reg.IsActive(ctx, "a@b.com"))
}

func TestUpsert_NormalizesEmail(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()

	_, err := reg.Upsert(ctx, "  Alice@Example.COM ", Tokens{AccessToken: "t"})
	require.NoError(t, err)
	assert.True(t, reg.IsActive(ctx, "alice@example.com"))
}

func TestUpsert_EmptyEmailIsHardError(t *testing.T) {
	reg, _ := newTestRegistry()
	_, err := reg.Upsert(context.Background(), "  ", Tokens{AccessToken: "t"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestUpsert_DefaultExpiry(t *testing.T) {
	reg, clock := newTestRegistry()
	rec, err := reg.Upsert(context.Background(), "a@b.com", Tokens{AccessToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultTokenLifetime), rec.ExpiresAt)
}

func TestUpsert_ReplacesExistingRecord(t *testing.T) {
	ctx := context.Background()
	reg, clock := newTestRegistry()

	first, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t1", RefreshToken: "r1"})
	require.NoError(t, err)
	_, err = reg.Revoke(ctx, "a@b.com")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	second, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t2"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ConnectionID, second.ConnectionID)
	assert.Equal(t, StatusActive, second.Status)
	assert.Equal(t, "r1", second.RefreshToken, "refresh token carried over when provider omits it")
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	all, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIsActive_ExpiresWithoutMutation(t *testing.T) {
	ctx := context.Background()
	reg, clock := newTestRegistry()

	_, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t", ExpiresIn: 10 * time.Minute})
	require.NoError(t, err)
	assert.True(t, reg.IsActive(ctx, "a@b.com"))

	clock.Advance(10 * time.Minute)
	assert.False(t, reg.IsActive(ctx, "a@b.com"), "expiry equal to now is not active")

	rec, err := reg.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, rec.Status, "stored status is unchanged")
	assert.Equal(t, StatusExpired, rec.EffectiveStatus(clock.Now()))
}

func TestIsActive_UnknownOrEmpty(t *testing.T) {
	reg, _ := newTestRegistry()
	assert.False(t, reg.IsActive(context.Background(), "nobody@b.com"))
	assert.False(t, reg.IsActive(context.Background(), ""))
}

func TestIsActive_StoreError(t *testing.T) {
	reg := New(&failingStore{})
	assert.False(t, reg.IsActive(context.Background(), "a@b.com"))
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()

	ok, err := reg.Revoke(ctx, "missing@b.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t", ExpiresIn: 24 * time.Hour})
	require.NoError(t, err)

	ok, err = reg.Revoke(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, reg.IsActive(ctx, "a@b.com"), "revoked with future expiry is inactive")

	rec, err := reg.Get(ctx, "a@b.com")
	require.NoError(t, err, "revoked records are kept")
	assert.Equal(t, StatusRevoked, rec.Status)
}

func TestRefresh_Simulated(t *testing.T) {
	ctx := context.Background()
	reg, clock := newTestRegistry()

	ok, err := reg.Refresh(ctx, "missing@b.com")
	require.NoError(t, err)
	assert.False(t, ok, "no record")

	_, err = reg.Upsert(ctx, "norefresh@b.com", Tokens{AccessToken: "t"})
	require.NoError(t, err)
	ok, err = reg.Refresh(ctx, "norefresh@b.com")
	require.NoError(t, err)
	assert.False(t, ok, "no refresh token")

	_, err = reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t", RefreshToken: "r", ExpiresIn: time.Minute})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	require.False(t, reg.IsActive(ctx, "a@b.com"))

	ok, err = reg.Refresh(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, reg.IsActive(ctx, "a@b.com"))

	rec, err := reg.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(SimulatedRefreshWindow), rec.ExpiresAt)
	assert.Equal(t, "t", rec.AccessToken)
}

func TestRefresh_Provider(t *testing.T) {
	ctx := context.Background()
	refresher := &stubRefresher{tokens: Tokens{AccessToken: "t2", ExpiresIn: 30 * time.Minute}}
	reg, clock := newTestRegistry(WithRefresher(refresher))

	_, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t1", RefreshToken: "r1"})
	require.NoError(t, err)

	ok, err := reg.Refresh(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, refresher.calls)

	rec, err := reg.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "t2", rec.AccessToken)
	assert.Equal(t, "r1", rec.RefreshToken)
	assert.Equal(t, clock.Now().Add(30*time.Minute), rec.ExpiresAt)
}

func TestRefresh_ProviderError(t *testing.T) {
	ctx := context.Background()
	refresher := &stubRefresher{err: errors.New("invalid_grant")}
	reg, _ := newTestRegistry(WithRefresher(refresher))

	_, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t1", RefreshToken: "r1"})
	require.NoError(t, err)

	ok, err := reg.Refresh(ctx, "a@b.com")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "invalid_grant")
}

func TestRefresh_RevokedIsNotRefreshed(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()

	_, err := reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t", RefreshToken: "r"})
	require.NoError(t, err)
	_, err = reg.Revoke(ctx, "a@b.com")
	require.NoError(t, err)

	ok, err := reg.Refresh(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, reg.IsActive(ctx, "a@b.com"))
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	reg, clock := newTestRegistry()

	_, _ = reg.Upsert(ctx, "active@b.com", Tokens{AccessToken: "t", ExpiresIn: 2 * time.Hour})
	_, _ = reg.Upsert(ctx, "expiring@b.com", Tokens{AccessToken: "t", ExpiresIn: time.Minute})
	_, _ = reg.Upsert(ctx, "revoked@b.com", Tokens{AccessToken: "t", ExpiresIn: 2 * time.Hour})
	_, _ = reg.Revoke(ctx, "revoked@b.com")

	clock.Advance(5 * time.Minute)

	s, err := reg.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Active: 1, Expired: 1, Revoked: 1}, s)
}

func TestSummary_Empty(t *testing.T) {
	reg, _ := newTestRegistry()
	s, err := reg.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, s)
}
