package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/employd-dev/employd/internal/authz"
	"github.com/employd-dev/employd/internal/gateway"
	"github.com/employd-dev/employd/internal/projection"
	"github.com/employd-dev/employd/internal/session"
)

// fakeGateway scripts provider behavior per test.
type fakeGateway struct {
	mu sync.Mutex

	signInFn     func(email, password string) (*gateway.SignInResult, error)
	getSessionFn func() (*gateway.Session, error)
	getProfileFn func(userID string) (*session.User, error)

	signOutErr   error
	signOutCalls atomic.Int32

	sessionCalls atomic.Int32

	listener func(*session.User)
}

func (f *fakeGateway) SignIn(ctx context.Context, email, password string) (*gateway.SignInResult, error) {
	if f.signInFn == nil {
		return nil, errors.New("sign-in not scripted")
	}
	return f.signInFn(email, password)
}

func (f *fakeGateway) SignOut(ctx context.Context) error {
	f.signOutCalls.Add(1)
	return f.signOutErr
}

func (f *fakeGateway) GetSession(ctx context.Context) (*gateway.Session, error) {
	f.sessionCalls.Add(1)
	if f.getSessionFn == nil {
		return nil, nil
	}
	return f.getSessionFn()
}

func (f *fakeGateway) GetUserProfile(ctx context.Context, userID string) (*session.User, error) {
	if f.getProfileFn == nil {
		return nil, nil
	}
	return f.getProfileFn(userID)
}

func (f *fakeGateway) OnAuthStateChange(fn func(user *session.User)) gateway.Subscription {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	return &fakeSubscription{gw: f}
}

func (f *fakeGateway) pushAuthChange(u *session.User) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

type fakeSubscription struct{ gw *fakeGateway }

func (s *fakeSubscription) Unsubscribe() {
	s.gw.mu.Lock()
	s.gw.listener = nil
	s.gw.mu.Unlock()
}

func testUser() *session.User {
	return &session.User{ID: "u1", Email: "a@example.com", Role: session.RoleAdmin, FullName: "Alex Doe"}
}

func newTestController(gw *fakeGateway) (*Controller, *session.Store, *projection.MemoryStore) {
	proj := projection.NewMemoryStore()
	store := session.NewStore(proj, zerolog.Nop())
	ctrl := New(store, gw, zerolog.Nop())
	ctrl.BootstrapTimeout = 200 * time.Millisecond
	ctrl.LoginTimeout = 200 * time.Millisecond
	return ctrl, store, proj
}

func TestBootstrap_ActiveSession(t *testing.T) {
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return &gateway.Session{UserID: "u1", Email: "a@example.com"}, nil
		},
		getProfileFn: func(userID string) (*session.User, error) {
			if userID != "u1" {
				t.Errorf("profile lookup for %q, want u1", userID)
			}
			return testUser(), nil
		},
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	snap := store.Get()
	if !snap.IsAuthenticated || snap.User == nil || snap.User.ID != "u1" {
		t.Errorf("snapshot = %+v, want authenticated u1", snap)
	}
	if snap.IsLoading {
		t.Error("expected loading cleared after bootstrap")
	}
	if snap.AuthError != "" {
		t.Errorf("unexpected auth error %q", snap.AuthError)
	}
}

func TestBootstrap_NoSession(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("snapshot = %+v, want logged out", snap)
	}
	if snap.IsLoading {
		t.Error("expected loading cleared after bootstrap")
	}
}

func TestBootstrap_RunsOnce(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, _, _ := newTestController(gw)
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())
	ctrl.Bootstrap(context.Background())

	if got := gw.sessionCalls.Load(); got != 1 {
		t.Errorf("GetSession called %d times, want 1", got)
	}
}

func TestBootstrap_DiscardsInconsistentPersistedState(t *testing.T) {
	gw := &fakeGateway{}
	proj := projection.NewMemoryStore()
	proj.SeedRaw([]byte(`{"state":{"user":null,"isAuthenticated":true}}`))
	store := session.NewStore(proj, zerolog.Nop())
	ctrl := New(store, gw, zerolog.Nop())
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated {
		t.Error("corrupt persisted state must not yield an authenticated session")
	}
}

// loadRecorder wraps a projection store and records every value a Load
// returned, so tests can tell inspection apart from overwrite-then-read.
type loadRecorder struct {
	*projection.MemoryStore
	loads []session.Projection
}

func (r *loadRecorder) Load() (session.Projection, bool, error) {
	p, ok, err := r.MemoryStore.Load()
	if ok {
		r.loads = append(r.loads, p)
	}
	return p, ok, err
}

func TestBootstrap_InspectsSlotBeforeFirstWrite(t *testing.T) {
	gw := &fakeGateway{}
	proj := &loadRecorder{MemoryStore: projection.NewMemoryStore()}
	proj.Seed(session.Projection{
		User:            &session.User{ID: "ghost", Role: session.RoleHR},
		IsAuthenticated: false,
	})
	store := session.NewStore(proj, zerolog.Nop())
	ctrl := New(store, gw, zerolog.Nop())
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	// The inconsistent value written by the previous run must be the one
	// inspected, not a freshly serialized blank snapshot.
	if len(proj.loads) == 0 {
		t.Fatal("the persisted slot was never read")
	}
	first := proj.loads[0]
	if first.User == nil || first.User.ID != "ghost" {
		t.Errorf("first load observed %+v, want the seeded ghost user", first)
	}
	if !first.Corrupted() {
		t.Error("first load observed a consistent slot; the seeded value was overwritten before inspection")
	}

	if snap := store.Get(); snap.IsAuthenticated || snap.User != nil {
		t.Errorf("snapshot = %+v, want logged out after discard", snap)
	}
}

func TestBootstrap_RehydratesPersistedSession(t *testing.T) {
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return &gateway.Session{UserID: "u1"}, nil
		},
		getProfileFn: func(string) (*session.User, error) { return testUser(), nil },
	}
	proj := projection.NewMemoryStore()
	proj.Seed(session.Projection{User: testUser(), IsAuthenticated: true})
	store := session.NewStore(proj, zerolog.Nop())
	ctrl := New(store, gw, zerolog.Nop())
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	p, ok, err := proj.Load()
	if err != nil || !ok {
		t.Fatalf("expected stored projection, ok=%v err=%v", ok, err)
	}
	if p.User == nil || p.User.ID != "u1" || !p.IsAuthenticated {
		t.Errorf("projection = %+v, want the prior session carried through", p)
	}
}

func TestBootstrap_Timeout(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			<-release
			return &gateway.Session{UserID: "u1"}, nil
		},
		getProfileFn: func(string) (*session.User, error) { return testUser(), nil },
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()
	ctrl.BootstrapTimeout = 20 * time.Millisecond

	ctrl.Bootstrap(context.Background())

	snap := store.Get()
	if snap.IsLoading {
		t.Error("timeout must unblock the loading state")
	}
	if snap.AuthError != MsgBootstrapTimeout {
		t.Errorf("error = %q, want %q", snap.AuthError, MsgBootstrapTimeout)
	}

	// The late result loses the race and is discarded, not applied.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap = store.Get()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("late session result was applied: %+v", snap)
	}
	if snap.AuthError != MsgBootstrapTimeout {
		t.Errorf("error = %q, want timeout preserved", snap.AuthError)
	}
}

func TestBootstrap_TimeoutCoversProfileFetch(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return &gateway.Session{UserID: "u1"}, nil
		},
		getProfileFn: func(string) (*session.User, error) {
			<-release
			return testUser(), nil
		},
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()
	ctrl.BootstrapTimeout = 20 * time.Millisecond

	ctrl.Bootstrap(context.Background())

	// A fast session lookup followed by a hung profile fetch must still
	// hit the deadline instead of holding the loading state forever.
	snap := store.Get()
	if snap.IsLoading {
		t.Error("timeout must unblock the loading state")
	}
	if snap.AuthError != MsgBootstrapTimeout {
		t.Errorf("error = %q, want %q", snap.AuthError, MsgBootstrapTimeout)
	}

	close(release)
	time.Sleep(50 * time.Millisecond)

	snap = store.Get()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("late profile result was applied: %+v", snap)
	}
}

func TestBootstrap_SessionLookupError(t *testing.T) {
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return nil, errors.New("provider exploded")
		},
	}
	ctrl, store, proj := newTestController(gw)
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated {
		t.Error("expected logged out after failed bootstrap")
	}
	if snap.AuthError != MsgInitError {
		t.Errorf("error = %q, want %q", snap.AuthError, MsgInitError)
	}
	if proj.Stored() {
		t.Error("expected projection cleared after failed bootstrap")
	}
}

func TestBootstrap_MissingProfileForcesSignOut(t *testing.T) {
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return &gateway.Session{UserID: "ghost"}, nil
		},
		getProfileFn: func(string) (*session.User, error) { return nil, nil },
	}
	ctrl, store, proj := newTestController(gw)
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("snapshot = %+v, want logged out", snap)
	}
	if snap.AuthError != MsgProfileMissing {
		t.Errorf("error = %q, want %q", snap.AuthError, MsgProfileMissing)
	}
	if got := gw.signOutCalls.Load(); got != 1 {
		t.Errorf("SignOut called %d times, want 1", got)
	}
	if proj.Stored() {
		t.Error("expected projection cleared after forced sign-out")
	}
}

func TestLogin_Success(t *testing.T) {
	gw := &fakeGateway{
		signInFn: func(email, password string) (*gateway.SignInResult, error) {
			if email != "a@example.com" || password != "secret" {
				return nil, &gateway.Error{Kind: gateway.KindInvalidCredentials, Message: "invalid login credentials"}
			}
			return &gateway.SignInResult{
				Session: &gateway.Session{UserID: "u1"},
				User:    testUser(),
			}, nil
		},
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	res := ctrl.Login(context.Background(), Credentials{Email: "a@example.com", Password: "secret"})
	if !res.Success {
		t.Fatalf("login failed: %q", res.Error)
	}

	snap := store.Get()
	if !snap.IsAuthenticated || snap.User == nil {
		t.Errorf("snapshot = %+v, want authenticated", snap)
	}
	if snap.IsLoading {
		t.Error("expected loading cleared after login")
	}
}

func TestLogin_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "invalid credentials",
			err:  &gateway.Error{Kind: gateway.KindInvalidCredentials, Message: "invalid login credentials"},
			want: MsgInvalidCredentials,
		},
		{
			name: "timeout",
			err:  &gateway.Error{Kind: gateway.KindTimeout, Message: "request timeout"},
			want: MsgConnectionTimeout,
		},
		{
			name: "network",
			err:  &gateway.Error{Kind: gateway.KindNetwork, Message: "network error"},
			want: MsgNetworkError,
		},
		{
			name: "untyped provider failure",
			err:  errors.New("something odd"),
			want: MsgAuthError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{
				signInFn: func(string, string) (*gateway.SignInResult, error) {
					return nil, tt.err
				},
			}
			ctrl, store, _ := newTestController(gw)
			defer ctrl.Close()

			res := ctrl.Login(context.Background(), Credentials{Email: "a@example.com", Password: "x"})
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error != tt.want {
				t.Errorf("result error = %q, want %q", res.Error, tt.want)
			}
			if snap := store.Get(); snap.AuthError != tt.want {
				t.Errorf("snapshot error = %q, want %q", snap.AuthError, tt.want)
			}
		})
	}
}

func TestLogin_TimeoutDiscardsLateSuccess(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{
		signInFn: func(string, string) (*gateway.SignInResult, error) {
			<-release
			return &gateway.SignInResult{
				Session: &gateway.Session{UserID: "u1"},
				User:    testUser(),
			}, nil
		},
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()
	ctrl.LoginTimeout = 20 * time.Millisecond

	res := ctrl.Login(context.Background(), Credentials{Email: "a@example.com", Password: "secret"})
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if res.Error != MsgConnectionTimeout {
		t.Errorf("error = %q, want %q", res.Error, MsgConnectionTimeout)
	}

	// The sign-in completes after losing the race; the session must not
	// materialize.
	close(release)
	time.Sleep(50 * time.Millisecond)

	snap := store.Get()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("late sign-in result was applied: %+v", snap)
	}
}

func TestLogout_ResetsAndNavigates(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, store, proj := newTestController(gw)
	defer ctrl.Close()

	var navigatedTo string
	ctrl.SetNavigator(func(path string) { navigatedTo = path })

	store.SetUser(testUser())
	ctrl.Logout(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated || snap.User != nil {
		t.Errorf("snapshot = %+v, want logged out", snap)
	}
	if proj.Stored() {
		t.Error("expected projection cleared by logout")
	}
	if navigatedTo != "/login" {
		t.Errorf("navigated to %q, want /login", navigatedTo)
	}
	if got := gw.signOutCalls.Load(); got != 1 {
		t.Errorf("SignOut called %d times, want 1", got)
	}
}

func TestLogout_RemoteFailureStillClearsLocalState(t *testing.T) {
	gw := &fakeGateway{signOutErr: errors.New("provider down")}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	store.SetUser(testUser())
	ctrl.Logout(context.Background())

	if snap := store.Get(); snap.IsAuthenticated {
		t.Error("expected local session cleared despite remote failure")
	}
}

func TestRefreshAuth_Success(t *testing.T) {
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return &gateway.Session{UserID: "u1"}, nil
		},
		getProfileFn: func(string) (*session.User, error) { return testUser(), nil },
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	store.SetError(MsgBootstrapTimeout)
	ctrl.RefreshAuth(context.Background())

	snap := store.Get()
	if !snap.IsAuthenticated || snap.User == nil {
		t.Errorf("snapshot = %+v, want authenticated", snap)
	}
	if snap.AuthError != "" {
		t.Errorf("expected timeout error cleared by refresh, got %q", snap.AuthError)
	}
}

func TestRefreshAuth_AbsentSessionLogsOut(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	store.SetUser(testUser())
	ctrl.RefreshAuth(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated {
		t.Error("expected logged out after refresh with no session")
	}
	if snap.AuthError != "" {
		t.Errorf("an absent session is not an error, got %q", snap.AuthError)
	}
}

func TestRefreshAuth_FailureSetsError(t *testing.T) {
	gw := &fakeGateway{
		getSessionFn: func() (*gateway.Session, error) {
			return nil, errors.New("provider down")
		},
	}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	store.SetUser(testUser())
	ctrl.RefreshAuth(context.Background())

	snap := store.Get()
	if snap.IsAuthenticated {
		t.Error("expected logged out after failed refresh")
	}
	if snap.AuthError != MsgRefreshError {
		t.Errorf("error = %q, want %q", snap.AuthError, MsgRefreshError)
	}
}

func TestAuthStateChange_UpdatesStore(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	ctrl.Bootstrap(context.Background())

	gw.pushAuthChange(testUser())
	if snap := store.Get(); !snap.IsAuthenticated {
		t.Error("expected pushed sign-in to authenticate the snapshot")
	}

	gw.pushAuthChange(nil)
	if snap := store.Get(); snap.IsAuthenticated {
		t.Error("expected pushed sign-out to clear the snapshot")
	}
}

func TestClose_StopsMutations(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, store, _ := newTestController(gw)

	ctrl.Bootstrap(context.Background())
	ctrl.Close()

	gw.pushAuthChange(testUser())
	if snap := store.Get(); snap.IsAuthenticated {
		t.Error("closed controller must not apply auth-state changes")
	}
}

func TestHasPermission(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, store, _ := newTestController(gw)
	defer ctrl.Close()

	if ctrl.HasPermission(authz.PermViewAll) {
		t.Error("no user means no permissions")
	}

	store.SetUser(&session.User{ID: "u2", Role: session.RoleHR})
	if !ctrl.HasPermission(authz.PermViewAll) {
		t.Error("hr should hold view_all")
	}
	if ctrl.HasPermission(authz.PermViewBankData) {
		t.Error("hr should not hold view_bank_data")
	}

	store.SetUser(&session.User{ID: "u1", Role: session.RoleAdmin})
	if !ctrl.HasPermission(authz.PermViewBankData) {
		t.Error("admin should hold view_bank_data")
	}
}
