//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felixgeelhaar/splitbot/internal/domain"
	"github.com/felixgeelhaar/splitbot/internal/storage/postgres"
)

// setupPostgres creates a Postgres container and returns a migrated DB.
func setupPostgres(t *testing.T) *postgres.DB {
	t.Helper()
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:16-alpine",
		pgcontainer.WithDatabase("splitbot"),
		pgcontainer.WithUsername("splitbot"),
		pgcontainer.WithPassword("splitbot"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := postgres.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestIntegration_UserStore_ConcurrentResolveOrCreate(t *testing.T) {
	db := setupPostgres(t)
	users := postgres.NewUserStore(db)
	ctx := context.Background()

	const racers = 8
	ids := make([]int64, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := users.ResolveOrCreate(ctx, "+1000", "Ana")
			if err != nil {
				t.Errorf("ResolveOrCreate() error = %v", err)
				return
			}
			ids[i] = u.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent creators resolved to different rows: %v", ids)
		}
	}
}

func TestIntegration_SessionStore_ConcurrentCreate(t *testing.T) {
	db := setupPostgres(t)
	users := postgres.NewUserStore(db)
	sessions := postgres.NewSessionStore(db)
	ctx := context.Background()

	owner, err := users.ResolveOrCreate(ctx, "+1000", "Ana")
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	var created, conflicts int
	var mu sync.Mutex
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sessions.Create(ctx, "cena", owner.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrActiveSessionExists):
				conflicts++
			default:
				t.Errorf("Create() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created %d active sessions, want exactly 1", created)
	}
	if conflicts != racers-1 {
		t.Errorf("got %d conflicts, want %d", conflicts, racers-1)
	}
}

func TestIntegration_SessionStore_MembershipRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	users := postgres.NewUserStore(db)
	sessions := postgres.NewSessionStore(db)
	ctx := context.Background()

	owner, _ := users.ResolveOrCreate(ctx, "+1000", "Ana")
	guest, _ := users.ResolveOrCreate(ctx, "+2000", "Beto")

	sess, err := sessions.Create(ctx, "cena", owner.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	added, err := sessions.AddMember(ctx, sess.ID, guest.ID)
	if err != nil || !added {
		t.Fatalf("AddMember() = (%v, %v), want (true, nil)", added, err)
	}
	added, err = sessions.AddMember(ctx, sess.ID, guest.ID)
	if err != nil || added {
		t.Fatalf("repeat AddMember() = (%v, %v), want (false, nil)", added, err)
	}

	participants, err := sessions.ListParticipants(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListParticipants() error = %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("ListParticipants() returned %d entries, want 2", len(participants))
	}
	if participants[0].Role != domain.RoleOwner || participants[0].UserID != owner.ID {
		t.Errorf("first participant = %+v, want the owner", participants[0])
	}

	if err := sessions.RemoveMember(ctx, sess.ID, guest.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	isMember, err := sessions.IsMember(ctx, sess.ID, guest.ID)
	if err != nil {
		t.Fatalf("IsMember() error = %v", err)
	}
	if isMember {
		t.Error("IsMember() = true after RemoveMember")
	}
}
