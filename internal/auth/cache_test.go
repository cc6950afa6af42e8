package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
)

func testUser(id, subject string) *entities.User {
	return &entities.User{
		ID:              id,
		ExternalSubject: subject,
		Email:           subject + "@example.com",
		Role:            entities.RoleEmployee,
	}
}

func TestIdentityCache_GetBySubject(t *testing.T) {
	c := NewIdentityCache(time.Minute, 10)
	c.Set(testUser("1", "sub-a"))

	got := c.GetBySubject("sub-a")
	if got == nil {
		t.Fatal("expected cache hit")
	}
	if got.ID != "1" {
		t.Errorf("expected id 1, got %s", got.ID)
	}

	if c.GetBySubject("sub-unknown") != nil {
		t.Error("expected miss for unknown subject")
	}
}

func TestIdentityCache_GetByID(t *testing.T) {
	c := NewIdentityCache(time.Minute, 10)
	c.Set(testUser("42", "sub-b"))

	got := c.GetByID("42")
	if got == nil {
		t.Fatal("expected cache hit by internal id")
	}
	if got.ExternalSubject != "sub-b" {
		t.Errorf("expected subject sub-b, got %s", got.ExternalSubject)
	}
}

func TestIdentityCache_TTLExpiry(t *testing.T) {
	c := NewIdentityCache(30*time.Millisecond, 10)
	c.Set(testUser("1", "sub-a"))

	if c.GetBySubject("sub-a") == nil {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(50 * time.Millisecond)

	if c.GetBySubject("sub-a") != nil {
		t.Error("expected expired entry to be absent")
	}
	// Expired entry must be physically removed from both keyspaces
	if c.GetByID("1") != nil {
		t.Error("expected expired entry to be absent by id as well")
	}
	if size := c.Stats().Size; size != 0 {
		t.Errorf("expected size 0 after lazy expiry, got %d", size)
	}
}

func TestIdentityCache_CapacityEvictsOldestFirst(t *testing.T) {
	c := NewIdentityCache(time.Minute, 3)
	for i := 1; i <= 3; i++ {
		c.Set(testUser(fmt.Sprintf("%d", i), fmt.Sprintf("sub-%d", i)))
	}

	// Fourth insert evicts the earliest-inserted entry
	c.Set(testUser("4", "sub-4"))

	if c.GetBySubject("sub-1") != nil {
		t.Error("expected earliest-inserted entry to be evicted")
	}
	for _, subject := range []string{"sub-2", "sub-3", "sub-4"} {
		if c.GetBySubject(subject) == nil {
			t.Errorf("expected %s to remain cached", subject)
		}
	}
}

func TestIdentityCache_InvalidateBothKeyspaces(t *testing.T) {
	c := NewIdentityCache(time.Minute, 10)
	c.Set(testUser("7", "sub-g"))

	c.InvalidateID("7")
	if c.GetBySubject("sub-g") != nil {
		t.Error("invalidate by id must also remove the subject entry")
	}

	c.Set(testUser("7", "sub-g"))
	c.InvalidateSubject("sub-g")
	if c.GetByID("7") != nil {
		t.Error("invalidate by subject must also remove the id entry")
	}
}

func TestIdentityCache_Clear(t *testing.T) {
	c := NewIdentityCache(time.Minute, 10)
	c.Set(testUser("1", "sub-a"))
	c.Set(testUser("2", "sub-b"))

	c.Clear()

	if c.GetBySubject("sub-a") != nil || c.GetByID("2") != nil {
		t.Error("expected no entries after clear")
	}
}

func TestIdentityCache_Stats(t *testing.T) {
	c := NewIdentityCache(time.Minute, 10)
	c.Set(testUser("1", "sub-a"))

	c.GetBySubject("sub-a")   // hit
	c.GetBySubject("sub-a")   // hit
	c.GetBySubject("unknown") // miss

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.Size != 1 {
		t.Errorf("expected size 1, got %d", stats.Size)
	}
	want := 2.0 / 3.0
	if stats.HitRate < want-0.001 || stats.HitRate > want+0.001 {
		t.Errorf("expected hit rate ~%.3f, got %.3f", want, stats.HitRate)
	}
}

func TestIdentityCache_ConcurrentAccess(t *testing.T) {
	c := NewIdentityCache(time.Minute, 100)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				subject := fmt.Sprintf("sub-%d-%d", g, i%10)
				c.Set(testUser(fmt.Sprintf("%d-%d", g, i%10), subject))
				c.GetBySubject(subject)
				if i%50 == 0 {
					c.InvalidateSubject(subject)
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
