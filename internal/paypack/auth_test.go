package paypack

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	authorizeFn func(ctx context.Context, id, secret string) (*AuthResponse, error)
	refreshFn   func(ctx context.Context, refresh string) (*AuthResponse, error)

	authorizeCalls atomic.Int32
	refreshCalls   atomic.Int32
}

func (f *fakeSource) Authorize(ctx context.Context, id, secret string) (*AuthResponse, error) {
	f.authorizeCalls.Add(1)
	return f.authorizeFn(ctx, id, secret)
}

func (f *fakeSource) RefreshToken(ctx context.Context, refresh string) (*AuthResponse, error) {
	f.refreshCalls.Add(1)
	return f.refreshFn(ctx, refresh)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func authAt(access, refresh string, expires time.Time) *AuthResponse {
	return &AuthResponse{Access: access, Refresh: refresh, Expires: UnixTime{Time: expires}}
}

func newTestManager(src *fakeSource, clk *clock) *TokenManager {
	return NewTokenManager(src, "id", "secret", WithTokenClock(clk.Now))
}

func TestValidAccessTokenUsesCacheWhenFresh(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			require.Equal(t, "id", id)
			require.Equal(t, "secret", secret)
			return authAt("access-1", "refresh-1", clk.Now().Add(10*time.Minute)), nil
		},
	}
	m := newTestManager(src, clk)

	token, err := m.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", token)

	clk.Advance(8 * time.Minute) // 2 minutes of validity left
	for range 5 {
		token, err = m.ValidAccessToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, "access-1", token)
	}
	require.EqualValues(t, 1, src.authorizeCalls.Load())
	require.EqualValues(t, 0, src.refreshCalls.Load())
}

func TestValidAccessTokenRefreshesNearExpiry(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			return authAt("access-1", "refresh-1", clk.Now().Add(30*time.Second)), nil
		},
		refreshFn: func(ctx context.Context, refresh string) (*AuthResponse, error) {
			require.Equal(t, "refresh-1", refresh)
			return authAt("access-2", "refresh-2", clk.Now().Add(time.Hour)), nil
		},
	}
	m := newTestManager(src, clk)

	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	token, err := m.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-2", token)
	require.EqualValues(t, 1, src.authorizeCalls.Load())
	require.EqualValues(t, 1, src.refreshCalls.Load())

	info := m.TokenInfo()
	require.Equal(t, "refresh-2", info.RefreshToken)
}

func TestValidAccessTokenFallsBackToAuthenticate(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	issued := 0
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			issued++
			if issued == 1 {
				return authAt("access-1", "revoked", clk.Now().Add(10*time.Second)), nil
			}
			return authAt("access-fresh", "refresh-fresh", clk.Now().Add(time.Hour)), nil
		},
		refreshFn: func(ctx context.Context, refresh string) (*AuthResponse, error) {
			return nil, &APIError{StatusCode: 401, Code: "unauthorized", Message: "refresh token revoked"}
		},
	}
	m := newTestManager(src, clk)

	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	token, err := m.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-fresh", token)
	require.EqualValues(t, 1, src.refreshCalls.Load())
	require.EqualValues(t, 2, src.authorizeCalls.Load())
}

func TestValidAccessTokenPropagatesAuthenticateError(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	want := &APIError{StatusCode: 401, Code: "invalid_client", Message: "bad credentials"}
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			return nil, want
		},
	}
	m := newTestManager(src, clk)

	_, err := m.ValidAccessToken(context.Background())
	require.ErrorIs(t, err, want)
	require.False(t, m.IsAuthenticated())
	require.Nil(t, m.TokenInfo())
}

func TestRefreshWithoutToken(t *testing.T) {
	m := newTestManager(&fakeSource{}, &clock{t: time.Now()})

	_, err := m.Refresh(context.Background(), "")
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.EqualError(t, err, "no refresh token available")
}

func TestRefreshWithExplicitToken(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{
		refreshFn: func(ctx context.Context, refresh string) (*AuthResponse, error) {
			require.Equal(t, "supplied", refresh)
			return authAt("access", "next", clk.Now().Add(time.Hour)), nil
		},
	}
	m := newTestManager(src, clk)

	creds, err := m.Refresh(context.Background(), "supplied")
	require.NoError(t, err)
	require.Equal(t, "access", creds.AccessToken)
	require.True(t, m.IsAuthenticated())
}

func TestIsAuthenticatedIgnoresRefreshBuffer(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			return authAt("access", "refresh", clk.Now().Add(30*time.Second)), nil
		},
	}
	m := newTestManager(src, clk)
	require.False(t, m.IsAuthenticated())

	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	require.True(t, m.IsAuthenticated())

	clk.Advance(30 * time.Second)
	require.False(t, m.IsAuthenticated())
}

func TestClearTokensForcesAuthentication(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			return authAt("access", "refresh", clk.Now().Add(time.Hour)), nil
		},
		refreshFn: func(ctx context.Context, refresh string) (*AuthResponse, error) {
			return nil, errors.New("refresh should not be called")
		},
	}
	m := newTestManager(src, clk)

	_, err := m.ValidAccessToken(context.Background())
	require.NoError(t, err)

	m.ClearTokens()
	require.False(t, m.IsAuthenticated())

	_, err = m.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, src.authorizeCalls.Load())
	require.EqualValues(t, 0, src.refreshCalls.Load())
}

func TestValidAccessTokenCoalescesConcurrentCallers(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	release := make(chan struct{})
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			<-release
			return authAt("shared", "refresh", clk.Now().Add(time.Hour)), nil
		},
	}
	m := newTestManager(src, clk)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = m.ValidAccessToken(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, "shared", tokens[i])
	}
	require.EqualValues(t, 1, src.authorizeCalls.Load())
}

func TestValidAccessTokenSurvivesLeaderCancellation(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src := &fakeSource{
		authorizeFn: func(ctx context.Context, id, secret string) (*AuthResponse, error) {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return authAt("shared", "refresh", clk.Now().Add(time.Hour)), nil
		},
	}
	m := newTestManager(src, clk)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := m.ValidAccessToken(leaderCtx)
		leaderErr <- err
	}()
	<-started

	type result struct {
		token string
		err   error
	}
	follower := make(chan result, 1)
	go func() {
		token, err := m.ValidAccessToken(context.Background())
		follower <- result{token, err}
	}()

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-follower
	require.NoError(t, got.err)
	require.Equal(t, "shared", got.token)
	require.EqualValues(t, 1, src.authorizeCalls.Load())
	require.True(t, m.IsAuthenticated())
}
