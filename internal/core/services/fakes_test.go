package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
	err   error
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (r *memTaskRepo) Create(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	now := time.Now()
	task.CreatedAt, task.UpdatedAt = now, now
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (r *memTaskRepo) ListByUser(_ context.Context, filter ports.TaskFilter) ([]*domain.Task, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Task
	for _, task := range r.tasks {
		if task.UserID != filter.UserID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		cp := *task
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })

	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Task{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *memTaskRepo) UpdateFn(_ context.Context, id uuid.UUID, fn ports.TaskUpdateFunc) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *task
	if err := fn(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	r.tasks[id] = &cp
	out := cp
	return &out, nil
}

func (r *memTaskRepo) Delete(_ context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.UserID != userID {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

type memAuthRepo struct {
	mu        sync.Mutex
	tokens    map[string]*domain.RefreshRecord
	rotateErr error
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{tokens: make(map[string]*domain.RefreshRecord)}
}

func (r *memAuthRepo) StoreRefreshToken(_ context.Context, token *domain.RefreshRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.ID = uuid.New()
	cp := *token
	r.tokens[token.TokenHash] = &cp
	return nil
}

// RotateRefreshToken fails with rotateErr, if set, before touching any token,
// the way a rolled back transaction leaves the table.
func (r *memAuthRepo) RotateRefreshToken(_ context.Context, oldHash string, next *domain.RefreshRecord) (*domain.RefreshRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rotateErr != nil {
		return nil, r.rotateErr
	}
	token, ok := r.tokens[oldHash]
	if !ok {
		return nil, nil
	}
	out := *token
	if token.Revoked || token.UserID != next.UserID {
		return &out, nil
	}
	token.Revoked = true
	next.ID = uuid.New()
	cp := *next
	r.tokens[next.TokenHash] = &cp
	return &out, nil
}

func (r *memAuthRepo) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.tokens[tokenHash]; ok {
		token.Revoked = true
	}
	return nil
}

func (r *memAuthRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (r *memAuthRepo) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, token := range r.tokens {
		if token.ExpiresAt.Before(before) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (r *memAuthRepo) activeFor(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, token := range r.tokens {
		if token.UserID == userID && !token.Revoked {
			n++
		}
	}
	return n
}
