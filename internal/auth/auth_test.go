package auth

import (
	"path/filepath"
	"testing"
)

func TestServiceAllowlist(t *testing.T) {
	s, err := NewWithRepo(nil, []int64{10, 20})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !s.IsAllowed(10) || !s.IsAllowed(20) {
		t.Fatalf("configured IDs must be allowed")
	}
	if s.IsAllowed(30) {
		t.Fatalf("unknown ID must be denied")
	}

	if err := s.Upsert(User{ID: 30, Username: "asha"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !s.IsAllowed(30) {
		t.Fatalf("upserted ID must be allowed")
	}
	if err := s.Remove(30); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.IsAllowed(30) {
		t.Fatalf("removed ID must be denied")
	}
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}

	if users, err := repo.LoadAll(); err != nil || len(users) != 0 {
		t.Fatalf("fresh repo load = %v, %v", users, err)
	}

	if err := repo.Upsert(User{ID: 1, Username: "asha"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(User{ID: 1, Username: "asha2"}); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if err := repo.Upsert(User{ID: 2, Username: "ravi"}); err != nil {
		t.Fatalf("upsert second: %v", err)
	}

	users, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	if users[0].Username != "asha2" {
		t.Fatalf("update not applied: %+v", users[0])
	}

	if err := repo.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	users, err = repo.LoadAll()
	if err != nil || len(users) != 1 || users[0].ID != 2 {
		t.Fatalf("after remove: %+v, %v", users, err)
	}

	// Persistence feeds the service on restart.
	s, err := NewWithRepo(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !s.IsAllowed(2) || s.IsAllowed(1) {
		t.Fatalf("service did not reflect repository state")
	}
}
