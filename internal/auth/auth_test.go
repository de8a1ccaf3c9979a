package auth

import (
	"testing"

	"avt-guide/internal/storage"
)

func TestService_ConfiguredAndGranted(t *testing.T) {
	repo := NewKVRepo(storage.NewMemoryKV(0))
	svc, err := NewWithRepo(repo, []int64{20})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !svc.IsAllowed(20) || svc.IsAllowed(30) {
		t.Fatalf("unexpected initial state")
	}
	if err := svc.Grant(User{ID: 30, Username: "bob"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !svc.IsAllowed(30) {
		t.Fatalf("grant not effective")
	}

	reloaded, err := NewWithRepo(repo, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsAllowed(30) {
		t.Fatalf("granted operator not persisted")
	}

	if ok, err := svc.Revoke(20); ok || err != nil {
		t.Fatalf("configured operator must not be revoked: %v %v", ok, err)
	}
	if ok, err := svc.Revoke(30); !ok || err != nil {
		t.Fatalf("revoke: %v %v", ok, err)
	}
	if svc.IsAllowed(30) {
		t.Fatalf("revoke not effective")
	}
	users := svc.List()
	if len(users) != 1 || users[0].ID != 20 {
		t.Fatalf("list: %+v", users)
	}
}

func TestKVRepo_CorruptStartsEmpty(t *testing.T) {
	kv := storage.NewMemoryKV(0)
	_ = kv.Set(operatorsKey, []byte("{broken"))
	users, err := NewKVRepo(kv).LoadAll()
	if err != nil || len(users) != 0 {
		t.Fatalf("want empty list, got %+v %v", users, err)
	}
}
