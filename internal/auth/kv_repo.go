package auth

import (
	"encoding/json"
	"fmt"
	"sync"

	"avt-guide/internal/storage"
)

const operatorsKey = "telegram_operators"

// KVRepo persists operators as one JSON list in a storage.KV.
type KVRepo struct {
	kv storage.KV
	mu sync.Mutex
}

func NewKVRepo(kv storage.KV) *KVRepo { return &KVRepo{kv: kv} }

func (r *KVRepo) LoadAll() ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *KVRepo) Upsert(user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	replaced := false
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = user
			replaced = true
		}
	}
	if !replaced {
		users = append(users, user)
	}
	return r.saveUnlocked(users)
}

func (r *KVRepo) Remove(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	return r.saveUnlocked(out)
}

func (r *KVRepo) loadUnlocked() ([]User, error) {
	raw, ok, err := r.kv.Get(operatorsKey)
	if err != nil {
		return nil, fmt.Errorf("load operators: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var users []User
	if err := json.Unmarshal(raw, &users); err != nil {
		// corrupt list -> start empty
		return nil, nil
	}
	return users, nil
}

func (r *KVRepo) saveUnlocked(users []User) error {
	b, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("marshal operators: %w", err)
	}
	return r.kv.Set(operatorsKey, b)
}
