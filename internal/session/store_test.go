package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/storage"
)

type fakeAuth struct {
	mu            sync.Mutex
	loginFn       func(ctx context.Context, email, password string) (string, error)
	identityFn    func(ctx context.Context, token string) (*domain.User, error)
	loginCalls    int
	identityCalls int
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (string, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()
	return fn(ctx, email, password)
}

func (f *fakeAuth) Identity(ctx context.Context, token string) (*domain.User, error) {
	f.mu.Lock()
	f.identityCalls++
	fn := f.identityFn
	f.mu.Unlock()
	return fn(ctx, token)
}

func (f *fakeAuth) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.identityCalls
}

type fakeHeader struct {
	mu    sync.Mutex
	token string
}

func (h *fakeHeader) SetAuthToken(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *fakeHeader) ClearAuthToken() {
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
}

func (h *fakeHeader) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

type watchSignalStorage struct {
	storage.TokenStorage
	watching chan struct{}
	once     sync.Once
}

func (w *watchSignalStorage) Watch(ctx context.Context) (<-chan storage.Change, error) {
	ch, err := w.TokenStorage.Watch(ctx)
	w.once.Do(func() { close(w.watching) })
	return ch, err
}

func usersByToken(tokens map[string]string) func(context.Context, string) (*domain.User, error) {
	return func(_ context.Context, token string) (*domain.User, error) {
		id, ok := tokens[token]
		if !ok {
			return nil, errors.New("invalid token")
		}
		return &domain.User{ID: id, Email: id + "@x.com"}, nil
	}
}

func newTestStore(st storage.TokenStorage, auth Authenticator, header AuthHeader) *Store {
	return NewStore(StoreConfig{
		DeviceID: "dev1",
		TabID:    "tab1",
		Storage:  st,
		Auth:     auth,
		Header:   header,
		Logger:   zap.NewNop(),
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestStore_RestoreWithoutToken(t *testing.T) {
	auth := &fakeAuth{identityFn: usersByToken(nil)}
	store := newTestStore(storage.NewMemoryStorage(nil), auth, &fakeHeader{})

	if snap := store.Snapshot(); !snap.Loading || snap.State != domain.AuthUninitialized {
		t.Fatalf("expected uninitialized loading snapshot, got %+v", snap)
	}
	store.Restore(context.Background())

	snap := store.Snapshot()
	if snap.State != domain.AuthAnonymous || snap.Authenticated || snap.Loading {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	if _, identity := auth.calls(); identity != 0 {
		t.Fatalf("expected no identity call, got %d", identity)
	}
}

func TestStore_RestoreValidToken(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	_ = st.Set(ctx, storage.TokenKey("dev1"), "tok")
	header := &fakeHeader{}
	store := newTestStore(st, &fakeAuth{identityFn: usersByToken(map[string]string{"tok": "u1"})}, header)

	store.Restore(ctx)
	store.Restore(ctx)

	snap := store.Snapshot()
	if !snap.Authenticated || snap.User == nil || snap.User.ID != "u1" || snap.State != domain.AuthAuthenticated {
		t.Fatalf("expected authenticated u1, got %+v", snap)
	}
	if header.get() != "tok" {
		t.Fatalf("expected header tok, got %q", header.get())
	}
}

func TestStore_RestoreFailureClearsToken(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	_ = st.Set(ctx, storage.TokenKey("dev1"), "expired")
	header := &fakeHeader{}
	store := newTestStore(st, &fakeAuth{identityFn: usersByToken(nil)}, header)

	store.Restore(ctx)

	snap := store.Snapshot()
	if snap.Authenticated || snap.State != domain.AuthAnonymous || snap.Loading {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	if _, ok, _ := st.Get(ctx, storage.TokenKey("dev1")); ok {
		t.Fatalf("expected token removed")
	}
	if header.get() != "" {
		t.Fatalf("expected header cleared, got %q", header.get())
	}
}

func TestStore_LoginSuccess(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	auth := &fakeAuth{
		loginFn:    func(context.Context, string, string) (string, error) { return "tok", nil },
		identityFn: usersByToken(map[string]string{"tok": "u1"}),
	}
	header := &fakeHeader{}
	store := newTestStore(st, auth, header)

	if err := store.Login(ctx, "u1@x.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	snap := store.Snapshot()
	if !snap.Authenticated || snap.User.ID != "u1" || snap.Loading {
		t.Fatalf("expected authenticated, got %+v", snap)
	}
	if v, ok, _ := st.Get(ctx, storage.TokenKey("dev1")); !ok || v != "tok" {
		t.Fatalf("expected stored token, got %q %v", v, ok)
	}
	if header.get() != "tok" {
		t.Fatalf("expected header tok, got %q", header.get())
	}
}

func TestStore_LoginFailureSurfacesError(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	_ = st.Set(ctx, storage.TokenKey("dev1"), "old")
	invalid := errors.New("invalid credentials")
	auth := &fakeAuth{loginFn: func(context.Context, string, string) (string, error) { return "", invalid }}
	store := newTestStore(st, auth, &fakeHeader{})

	if err := store.Login(ctx, "a@x.com", "bad"); !errors.Is(err, invalid) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	snap := store.Snapshot()
	if snap.Authenticated || snap.State != domain.AuthAnonymous || snap.Loading {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	if _, ok, _ := st.Get(ctx, storage.TokenKey("dev1")); ok {
		t.Fatalf("expected token cleared")
	}
}

func TestStore_LoginRequiresCredentials(t *testing.T) {
	store := newTestStore(storage.NewMemoryStorage(nil), &fakeAuth{}, &fakeHeader{})
	if err := store.Login(context.Background(), " ", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestStore_StaleLoginDiscarded(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	started := make(chan struct{})
	releaseA := make(chan struct{})
	auth := &fakeAuth{
		loginFn: func(_ context.Context, email, _ string) (string, error) {
			if email == "a@x.com" {
				close(started)
				<-releaseA
				return "tokA", nil
			}
			return "tokB", nil
		},
		identityFn: usersByToken(map[string]string{"tokA": "a", "tokB": "b"}),
	}
	store := newTestStore(st, auth, &fakeHeader{})

	errA := make(chan error, 1)
	go func() { errA <- store.Login(ctx, "a@x.com", "pw") }()
	<-started

	if err := store.Login(ctx, "b@x.com", "pw"); err != nil {
		t.Fatalf("login b failed: %v", err)
	}
	close(releaseA)
	if err := <-errA; !errors.Is(err, ErrLoginSuperseded) {
		t.Fatalf("expected ErrLoginSuperseded, got %v", err)
	}

	snap := store.Snapshot()
	if snap.User == nil || snap.User.ID != "b" || snap.Loading {
		t.Fatalf("expected user b, got %+v", snap)
	}
	if v, _, _ := st.Get(ctx, storage.TokenKey("dev1")); v != "tokB" {
		t.Fatalf("expected stored tokB, got %q", v)
	}
}

func TestStore_LoadingUntilLatestLoginResolves(t *testing.T) {
	ctx := context.Background()
	startedA := make(chan struct{})
	startedB := make(chan struct{})
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	auth := &fakeAuth{
		loginFn: func(_ context.Context, email, _ string) (string, error) {
			if email == "a@x.com" {
				close(startedA)
				<-releaseA
				return "", errors.New("invalid credentials")
			}
			close(startedB)
			<-releaseB
			return "tokB", nil
		},
		identityFn: usersByToken(map[string]string{"tokB": "b"}),
	}
	store := newTestStore(storage.NewMemoryStorage(nil), auth, &fakeHeader{})

	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() { errA <- store.Login(ctx, "a@x.com", "pw") }()
	<-startedA
	go func() { errB <- store.Login(ctx, "b@x.com", "pw") }()
	<-startedB

	close(releaseA)
	if err := <-errA; !errors.Is(err, ErrLoginSuperseded) {
		t.Fatalf("expected ErrLoginSuperseded, got %v", err)
	}
	if snap := store.Snapshot(); !snap.Loading || snap.State != domain.AuthLoading {
		t.Fatalf("expected still loading, got %+v", snap)
	}

	close(releaseB)
	if err := <-errB; err != nil {
		t.Fatalf("login b failed: %v", err)
	}
	if snap := store.Snapshot(); snap.Loading || !snap.Authenticated {
		t.Fatalf("expected authenticated, got %+v", snap)
	}
}

func TestStore_LogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	header := &fakeHeader{}
	auth := &fakeAuth{
		loginFn:    func(context.Context, string, string) (string, error) { return "tok", nil },
		identityFn: usersByToken(map[string]string{"tok": "u1"}),
	}
	store := newTestStore(st, auth, header)
	if err := store.Login(ctx, "u1@x.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	store.Logout(ctx)
	store.Logout(ctx)

	snap := store.Snapshot()
	if snap.Authenticated || snap.User != nil || snap.State != domain.AuthAnonymous {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	if _, ok, _ := st.Get(ctx, storage.TokenKey("dev1")); ok {
		t.Fatalf("expected token removed")
	}
	if header.get() != "" {
		t.Fatalf("expected header cleared")
	}
}

func TestStore_CrossTabRemovalWithoutNetwork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := &watchSignalStorage{TokenStorage: storage.NewMemoryStorage(nil), watching: make(chan struct{})}
	_ = st.Set(ctx, storage.TokenKey("dev1"), "tok")
	auth := &fakeAuth{identityFn: usersByToken(map[string]string{"tok": "u1"})}
	header := &fakeHeader{}
	store := newTestStore(st, auth, header)
	store.Restore(ctx)
	if !store.Snapshot().Authenticated {
		t.Fatalf("expected authenticated after restore")
	}

	go func() { _ = store.Observe(ctx) }()
	<-st.watching
	_, identityBefore := auth.calls()

	// Otra pestaña del mismo dispositivo cierra sesion.
	if err := st.Remove(ctx, storage.TokenKey("dev1")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	waitFor(t, func() bool { return !store.Snapshot().Authenticated })
	snap := store.Snapshot()
	if snap.State != domain.AuthAnonymous || snap.User != nil {
		t.Fatalf("expected anonymous, got %+v", snap)
	}
	if header.get() != "" {
		t.Fatalf("expected header cleared")
	}
	if login, identity := auth.calls(); login != 0 || identity != identityBefore {
		t.Fatalf("expected no backend calls, got login=%d identity=%d", login, identity)
	}
}

func TestStore_RemovalIgnoredWhenTokenRewritten(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage(nil)
	_ = st.Set(ctx, storage.TokenKey("dev1"), "tok")
	store := newTestStore(st, &fakeAuth{identityFn: usersByToken(map[string]string{"tok": "u1"})}, &fakeHeader{})
	store.Restore(ctx)

	store.handleRemoval(ctx)

	if !store.Snapshot().Authenticated {
		t.Fatalf("expected removal ignored while token present")
	}
}

func TestStore_OtherKeysIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := &watchSignalStorage{TokenStorage: storage.NewMemoryStorage(nil), watching: make(chan struct{})}
	_ = st.Set(ctx, storage.TokenKey("dev1"), "tok")
	_ = st.Set(ctx, storage.TokenKey("dev2"), "other")
	store := newTestStore(st, &fakeAuth{identityFn: usersByToken(map[string]string{"tok": "u1"})}, &fakeHeader{})
	store.Restore(ctx)
	go func() { _ = store.Observe(ctx) }()
	<-st.watching

	_ = st.Remove(ctx, storage.TokenKey("dev2"))
	time.Sleep(50 * time.Millisecond)

	if !store.Snapshot().Authenticated {
		t.Fatalf("expected session untouched by another device")
	}
}

func TestStore_PendingRedirect(t *testing.T) {
	store := newTestStore(storage.NewMemoryStorage(nil), &fakeAuth{}, &fakeHeader{})
	if _, ok := store.ConsumePendingRedirect(); ok {
		t.Fatalf("expected no pending redirect")
	}
	store.SetPendingRedirect("/orders")
	path, ok := store.ConsumePendingRedirect()
	if !ok || path != "/orders" {
		t.Fatalf("expected /orders, got %q %v", path, ok)
	}
	if _, ok := store.ConsumePendingRedirect(); ok {
		t.Fatalf("expected redirect consumed")
	}
}

func TestStore_SubscribeReceivesTransitions(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{
		loginFn:    func(context.Context, string, string) (string, error) { return "tok", nil },
		identityFn: usersByToken(map[string]string{"tok": "u1"}),
	}
	store := newTestStore(storage.NewMemoryStorage(nil), auth, &fakeHeader{})
	ch, cancel := store.Subscribe()
	defer cancel()

	if first := <-ch; first.State != domain.AuthUninitialized {
		t.Fatalf("expected initial snapshot, got %+v", first)
	}
	if err := store.Login(ctx, "u1@x.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var last domain.SessionSnapshot
	for len(ch) > 0 {
		last = <-ch
	}
	if !last.Authenticated || last.State != domain.AuthAuthenticated {
		t.Fatalf("expected authenticated transition, got %+v", last)
	}
}

func TestStore_RestoreDoesNotSupersedeInflightLogin(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{
		loginFn: func(context.Context, string, string) (string, error) {
			close(started)
			<-release
			return "tok", nil
		},
		identityFn: usersByToken(map[string]string{"tok": "u1"}),
	}
	store := newTestStore(storage.NewMemoryStorage(nil), auth, &fakeHeader{})

	errLogin := make(chan error, 1)
	go func() { errLogin <- store.Login(ctx, "u1@x.com", "pw") }()
	<-started

	// Una request protegida llega mientras el login esta en vuelo.
	restoreDone := make(chan struct{})
	go func() {
		store.Restore(ctx)
		close(restoreDone)
	}()
	select {
	case <-restoreDone:
	case <-time.After(time.Second):
		t.Fatalf("restore blocked behind login")
	}

	close(release)
	if err := <-errLogin; err != nil {
		t.Fatalf("expected login to win, got %v", err)
	}
	snap := store.Snapshot()
	if !snap.Authenticated || snap.Loading || snap.User.ID != "u1" {
		t.Fatalf("expected authenticated u1, got %+v", snap)
	}
	if _, identity := auth.calls(); identity != 1 {
		t.Fatalf("expected only the login identity call, got %d", identity)
	}
}

func TestStore_OwnRemovalDuringReloginKeepsUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := &watchSignalStorage{TokenStorage: storage.NewMemoryStorage(nil), watching: make(chan struct{})}
	_ = st.Set(ctx, storage.TokenKey("dev1"), "tokA")
	started := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{
		loginFn: func(context.Context, string, string) (string, error) {
			close(started)
			<-release
			return "tokB", nil
		},
		identityFn: usersByToken(map[string]string{"tokA": "a", "tokB": "b"}),
	}
	store := newTestStore(st, auth, &fakeHeader{})
	store.Restore(ctx)
	go func() { _ = store.Observe(ctx) }()
	<-st.watching

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	errLogin := make(chan error, 1)
	go func() { errLogin <- store.Login(ctx, "b@x.com", "pw") }()
	<-started
	time.Sleep(50 * time.Millisecond)

	if snap := store.Snapshot(); !snap.Authenticated || snap.User.ID != "a" {
		t.Fatalf("expected user a kept while relogin runs, got %+v", snap)
	}

	close(release)
	if err := <-errLogin; err != nil {
		t.Fatalf("login failed: %v", err)
	}
	for {
		select {
		case snap := <-updates:
			if !snap.Authenticated {
				t.Fatalf("subscriber saw signed-out snapshot during relogin: %+v", snap)
			}
			if snap.State == domain.AuthAuthenticated && snap.User.ID == "b" {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for user b")
		}
	}
}
