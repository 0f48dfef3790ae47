package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/gateway"
	redisx "github.com/kirinyoku/busgo/internal/redis"
	redisrepo "github.com/kirinyoku/busgo/internal/repository/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	users map[string]domain.User
}

func (g *fakeGateway) Login(_ context.Context, c gateway.Credentials) (*domain.User, error) {
	u, ok := g.users[c.Email+"/"+c.Password]
	if !ok {
		return nil, &gateway.HTTPError{Op: "gateway.Login", Status: 401, Body: "Invalid credentials"}
	}
	return &u, nil
}

func newService(t *testing.T, limit int) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw := &fakeGateway{users: map[string]domain.User{
		"alice@example.com/secret": {ID: 7, Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser},
	}}

	return New(
		gw,
		redisrepo.NewStore[Session](rdb, redisx.KeySession, time.Hour),
		redisrepo.NewSlidingWindowLimiter(rdb, "login", limit, time.Minute),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestLoginAndCurrent(t *testing.T) {
	svc := newService(t, 10)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "alice@example.com", "secret", "ip:1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, int64(7), sess.User.ID)

	got, err := svc.Current(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.User, got.User)

	require.NoError(t, svc.Logout(ctx, sess.ID))
	_, err = svc.Current(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLoginRejected(t *testing.T) {
	svc := newService(t, 10)

	_, err := svc.Login(context.Background(), "alice@example.com", "wrong", "ip:1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "", "", "ip:1")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLoginRateLimited(t *testing.T) {
	svc := newService(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "alice@example.com", "wrong", "ip:1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := svc.Login(ctx, "alice@example.com", "secret", "ip:1")
	require.ErrorIs(t, err, ErrRateLimited)

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))

	_, err = svc.Login(ctx, "alice@example.com", "secret", "ip:2")
	assert.NoError(t, err)
}
