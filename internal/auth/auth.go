// Package auth keeps the list of operators allowed to run administrative
// bot commands.
package auth

import (
	"sort"
	"sync"
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Repository interface {
	LoadAll() ([]User, error)
	Upsert(user User) error
	Remove(userID int64) error
}

// Service answers whether a Telegram user is an operator. Initial ids come
// from configuration and cannot be revoked.
type Service struct {
	mu      sync.RWMutex
	repo    Repository
	users   map[int64]User
	builtin map[int64]bool
}

func NewWithRepo(repo Repository, initial []int64) (*Service, error) {
	s := &Service{repo: repo, users: make(map[int64]User), builtin: make(map[int64]bool)}
	if repo != nil {
		users, err := repo.LoadAll()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			s.users[u.ID] = u
		}
	}
	for _, id := range initial {
		s.builtin[id] = true
		if _, ok := s.users[id]; !ok {
			s.users[id] = User{ID: id}
		}
	}
	return s, nil
}

func (s *Service) IsAllowed(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

func (s *Service) Grant(user User) error {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(user)
	}
	return nil
}

// Revoke removes an operator. It reports false for configured operators.
func (s *Service) Revoke(userID int64) (bool, error) {
	s.mu.Lock()
	if s.builtin[userID] {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.users, userID)
	s.mu.Unlock()
	if s.repo != nil {
		if err := s.repo.Remove(userID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// List returns operators ordered by id.
func (s *Service) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
