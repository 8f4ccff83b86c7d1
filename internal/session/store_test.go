package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) RedirectTo(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type failingCredentials struct {
	getErr    error
	removeErr error
	removed   int
}

func (f *failingCredentials) Credential(context.Context) (string, error) {
	return "", f.getErr
}

func (f *failingCredentials) SaveCredential(context.Context, string) error {
	return nil
}

func (f *failingCredentials) RemoveCredential(context.Context) error {
	f.removed++
	return f.removeErr
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func validToken(t *testing.T, sub, role string) string {
	return signToken(t, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *KVCredentials, *recordingNavigator) {
	t.Helper()
	creds := NewKVCredentials(kvstore.NewMemoryStore())
	nav := &recordingNavigator{}
	return NewStore(creds, NewJWTDecoder(""), nav, opts...), creds, nav
}

func TestNewStore_StartsResolving(t *testing.T) {
	s, _, _ := newTestStore(t)

	assert.True(t, s.IsResolving())
	assert.Nil(t, s.CurrentUser())
}

func TestResolve_ValidCredential(t *testing.T) {
	ctx := context.Background()
	s, creds, _ := newTestStore(t)
	require.NoError(t, creds.SaveCredential(ctx, validToken(t, "alice", "CLIENT")))

	require.NoError(t, s.Resolve(ctx))

	assert.False(t, s.IsResolving())
	assert.Equal(t, &domain.Identity{PrincipalName: "alice", Role: domain.RoleClient}, s.CurrentUser())
}

func TestResolve_NoCredential(t *testing.T) {
	s, _, _ := newTestStore(t)

	require.NoError(t, s.Resolve(context.Background()))

	assert.False(t, s.IsResolving())
	assert.Nil(t, s.CurrentUser())
}

func TestResolve_InvalidCredential(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"expired", ""},
		{"missing role", ""},
	}
	tests[1].token = signToken(t, jwt.MapClaims{"sub": "bob", "role": "CLIENT", "exp": time.Now().Add(-time.Hour).Unix()})
	tests[2].token = signToken(t, jwt.MapClaims{"sub": "bob"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, creds, _ := newTestStore(t)
			require.NoError(t, creds.SaveCredential(ctx, tt.token))

			require.NoError(t, s.Resolve(ctx))

			assert.False(t, s.IsResolving())
			assert.Nil(t, s.CurrentUser())

			// left in place by default
			stored, err := creds.Credential(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.token, stored)
		})
	}
}

func TestResolve_ClearInvalidCredential(t *testing.T) {
	ctx := context.Background()
	s, creds, _ := newTestStore(t, WithClearInvalidCredential(true))
	require.NoError(t, creds.SaveCredential(ctx, "not-a-jwt"))

	require.NoError(t, s.Resolve(ctx))

	assert.Nil(t, s.CurrentUser())
	_, err := creds.Credential(ctx)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestResolve_StorageFailure(t *testing.T) {
	creds := &failingCredentials{getErr: errors.New("disk gone")}
	s := NewStore(creds, NewJWTDecoder(""), &recordingNavigator{})

	err := s.Resolve(context.Background())

	require.Error(t, err)
	assert.False(t, s.IsResolving())
	assert.Nil(t, s.CurrentUser())
}

func TestResolve_NotifiesResolvingThenSettled(t *testing.T) {
	ctx := context.Background()
	s, creds, _ := newTestStore(t)
	require.NoError(t, creds.SaveCredential(ctx, validToken(t, "alice", "ADMIN")))

	var states []State
	s.Subscribe(func(st State) { states = append(states, st) })

	require.NoError(t, s.Resolve(ctx))

	require.Len(t, states, 2)
	assert.True(t, states[0].Resolving)
	assert.Nil(t, states[0].User)
	assert.False(t, states[1].Resolving)
	require.NotNil(t, states[1].User)
	assert.Equal(t, domain.RoleAdmin, states[1].User.Role)
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	s, creds, _ := newTestStore(t)
	require.NoError(t, s.Resolve(ctx))

	var states []State
	s.Subscribe(func(st State) { states = append(states, st) })

	require.NoError(t, creds.SaveCredential(ctx, validToken(t, "alice", "CLIENT")))
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, "alice", s.CurrentUser().PrincipalName)

	require.NoError(t, creds.RemoveCredential(ctx))
	require.NoError(t, s.Reload(ctx))
	assert.Nil(t, s.CurrentUser())

	for _, st := range states {
		assert.False(t, st.Resolving)
	}
}

func TestReload_OwnCredentialKeepsLoginIdentity(t *testing.T) {
	ctx := context.Background()
	s, creds, _ := newTestStore(t)
	require.NoError(t, s.Resolve(ctx))

	// the decoder cannot read this token; identity comes from the login response
	require.NoError(t, s.SaveCredential(ctx, "opaque-session-token"))
	s.Login(domain.Identity{PrincipalName: "alice", Role: domain.RoleClient})

	require.NoError(t, s.Reload(ctx))
	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "alice", s.CurrentUser().PrincipalName)

	require.NoError(t, creds.SaveCredential(ctx, validToken(t, "bob", "ADMIN")))
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, &domain.Identity{PrincipalName: "bob", Role: domain.RoleAdmin}, s.CurrentUser())
}

func TestReload_AfterLogoutStaysAnonymous(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	require.NoError(t, s.SaveCredential(ctx, validToken(t, "alice", "CLIENT")))
	require.NoError(t, s.Resolve(ctx))
	require.NoError(t, s.Logout(ctx))

	require.NoError(t, s.Reload(ctx))

	assert.Nil(t, s.CurrentUser())
}

func TestReload_StorageFailureKeepsIdentity(t *testing.T) {
	creds := &failingCredentials{getErr: ErrNoCredential}
	s := NewStore(creds, NewJWTDecoder(""), &recordingNavigator{})
	s.Login(domain.Identity{PrincipalName: "ivy", Role: domain.RoleClient})

	creds.getErr = errors.New("locked")
	require.Error(t, s.Reload(context.Background()))

	assert.Equal(t, "ivy", s.CurrentUser().PrincipalName)
}

func TestLogin_SetsIdentity(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Resolve(context.Background()))

	s.Login(domain.Identity{PrincipalName: "carol", Role: domain.RoleClient})

	assert.Equal(t, "carol", s.CurrentUser().PrincipalName)
	assert.False(t, s.IsResolving())
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s, creds, nav := newTestStore(t)
	require.NoError(t, creds.SaveCredential(ctx, validToken(t, "alice", "CLIENT")))
	require.NoError(t, s.Resolve(ctx))
	require.NotNil(t, s.CurrentUser())

	require.NoError(t, s.Logout(ctx))

	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, []string{LoginPath}, nav.visited())
	_, err := creds.Credential(ctx)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestLogout_WhenAnonymous(t *testing.T) {
	s, _, nav := newTestStore(t)
	require.NoError(t, s.Resolve(context.Background()))

	require.NoError(t, s.Logout(context.Background()))

	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, []string{LoginPath}, nav.visited())
}

func TestLogout_RemoveFailureStillClears(t *testing.T) {
	creds := &failingCredentials{getErr: ErrNoCredential, removeErr: errors.New("read-only")}
	nav := &recordingNavigator{}
	s := NewStore(creds, NewJWTDecoder(""), nav)
	s.Login(domain.Identity{PrincipalName: "dave", Role: domain.RoleClient})

	err := s.Logout(context.Background())

	require.Error(t, err)
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, []string{LoginPath}, nav.visited())
	assert.Equal(t, 1, creds.removed)
}

func TestCurrentUser_ReturnsCopy(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.Login(domain.Identity{PrincipalName: "erin", Role: domain.RoleClient})

	u := s.CurrentUser()
	u.Role = domain.RoleAdmin

	assert.Equal(t, domain.RoleClient, s.CurrentUser().Role)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s, _, _ := newTestStore(t)

	calls := 0
	unsubscribe := s.Subscribe(func(State) { calls++ })
	s.Login(domain.Identity{PrincipalName: "frank", Role: domain.RoleClient})
	unsubscribe()
	s.Login(domain.Identity{PrincipalName: "gina", Role: domain.RoleClient})

	assert.Equal(t, 1, calls)
}

func TestSubscribe_ListenerMayReadStore(t *testing.T) {
	s, _, _ := newTestStore(t)

	var seen string
	s.Subscribe(func(State) {
		if u := s.CurrentUser(); u != nil {
			seen = u.PrincipalName
		}
	})
	s.Login(domain.Identity{PrincipalName: "hank", Role: domain.RoleClient})

	assert.Equal(t, "hank", seen)
}
