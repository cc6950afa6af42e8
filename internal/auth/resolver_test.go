package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
)

// fakeVerifier returns fixed claims or a fixed error without any network work
type fakeVerifier struct {
	claims *Claims
	err    error
	calls  int64
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

// fakeStore records upserts and hands back a deterministic user per subject
type fakeStore struct {
	mu    sync.Mutex
	calls int
	err   error
	users map[string]*entities.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*entities.User)}
}

func (f *fakeStore) UpsertByExternalSubject(ctx context.Context, subject, email, displayName string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	user, ok := f.users[subject]
	if !ok {
		user = &entities.User{
			ID:              fmt.Sprintf("id-%s", subject),
			ExternalSubject: subject,
			Email:           email,
			DisplayName:     displayName,
			Role:            entities.RoleEmployee,
		}
		f.users[subject] = user
	} else {
		user.Email = email
		user.DisplayName = displayName
	}
	return user, nil
}

func validClaims(subject string) *Claims {
	return &Claims{
		Subject:   subject,
		Email:     subject + "@example.com",
		Name:      "Test Person",
		Issuer:    testIssuer,
		Audience:  testAudience,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestResolver_FirstSeenSubjectIsProvisioned(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(&fakeVerifier{claims: validClaims("sub-new")}, NewIdentityCache(time.Minute, 10), store)

	identity, err := r.Resolve(context.Background(), "Bearer token")
	if err != nil {
		t.Fatalf("expected resolution, got %v", err)
	}

	if identity.UserID != "id-sub-new" {
		t.Errorf("expected user id id-sub-new, got %s", identity.UserID)
	}
	if identity.Role != entities.RoleEmployee {
		t.Errorf("expected default role employee, got %s", identity.Role)
	}
	if identity.ExternalSubject != "sub-new" {
		t.Errorf("expected subject sub-new, got %s", identity.ExternalSubject)
	}
	if store.calls != 1 {
		t.Errorf("expected exactly 1 upsert, got %d", store.calls)
	}
}

func TestResolver_CacheHitSkipsStore(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(&fakeVerifier{claims: validClaims("sub-a")}, NewIdentityCache(time.Minute, 10), store)

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve(context.Background(), "Bearer token"); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}

	if store.calls != 1 {
		t.Errorf("expected a single upsert across repeated resolutions, got %d", store.calls)
	}
}

func TestResolver_ExpiredCacheEntryHitsStoreAgain(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(&fakeVerifier{claims: validClaims("sub-a")}, NewIdentityCache(30*time.Millisecond, 10), store)

	if _, err := r.Resolve(context.Background(), "Bearer token"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := r.Resolve(context.Background(), "Bearer token"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if store.calls != 2 {
		t.Errorf("expected exactly 2 upserts around expiry, got %d", store.calls)
	}
}

func TestResolver_MalformedHeaderShortCircuits(t *testing.T) {
	verifier := &fakeVerifier{claims: validClaims("sub-a")}
	store := newFakeStore()
	r := NewResolver(verifier, NewIdentityCache(time.Minute, 10), store)

	for _, header := range []string{"", "Basic xyz", "Bearer a b"} {
		_, err := r.Resolve(context.Background(), header)
		if err == nil {
			t.Errorf("header %q: expected error", header)
		}
		if !IsAuthFailure(err) {
			t.Errorf("header %q: expected an authentication failure, got %v", header, err)
		}
	}

	if atomic.LoadInt64(&verifier.calls) != 0 {
		t.Error("verifier must not be consulted for unparseable headers")
	}
	if store.calls != 0 {
		t.Error("store must not be consulted for unparseable headers")
	}
}

func TestResolver_VerificationFailurePropagates(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(&fakeVerifier{err: ErrSignatureInvalid}, NewIdentityCache(time.Minute, 10), store)

	_, err := r.Resolve(context.Background(), "Bearer bad")
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if store.calls != 0 {
		t.Error("store must not be consulted when verification fails")
	}
}

func TestResolver_StoreFailureIsNotAuthFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	r := NewResolver(&fakeVerifier{claims: validClaims("sub-a")}, NewIdentityCache(time.Minute, 10), store)

	_, err := r.Resolve(context.Background(), "Bearer token")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if IsAuthFailure(err) {
		t.Error("a persistence fault must not be classified as an authentication failure")
	}
}

func TestResolver_ConcurrentFirstResolution(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(&fakeVerifier{claims: validClaims("sub-a")}, NewIdentityCache(time.Minute, 10), store)

	const goroutines = 16
	identities := make([]*Identity, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identities[i], errs[i] = r.Resolve(context.Background(), "Bearer token")
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if identities[i].UserID != identities[0].UserID {
			t.Errorf("goroutine %d resolved a different identity: %s vs %s",
				i, identities[i].UserID, identities[0].UserID)
		}
	}
}

func TestIdentityFromContext(t *testing.T) {
	if _, err := IdentityFromContext(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity on empty context, got %v", err)
	}

	want := &Identity{UserID: "1", ExternalSubject: "sub-a", Role: entities.RoleEmployee}
	ctx := SetIdentityInContext(context.Background(), want)

	got, err := IdentityFromContext(ctx)
	if err != nil {
		t.Fatalf("expected identity, got %v", err)
	}
	if got.UserID != "1" {
		t.Errorf("expected user id 1, got %s", got.UserID)
	}
}
