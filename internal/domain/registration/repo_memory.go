package registration

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type registrationRepoMemory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Registration
}

// NewRegistrationRepoMemory returns a repository kept in process memory,
// used when no database is configured.
func NewRegistrationRepoMemory() RegistrationRepository {
	return &registrationRepoMemory{items: make(map[uuid.UUID]*Registration)}
}

func (r *registrationRepoMemory) Create(_ context.Context, reg *Registration) error {
	reg.ID = uuid.New()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	cp := *reg
	cp.Activities = reg.Activities.Clone()
	r.mu.Lock()
	r.items[reg.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *registrationRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.items[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *registrationRepoMemory) List(_ context.Context, limit, offset int) ([]*Registration, int, error) {
	r.mu.RLock()
	all := make([]*Registration, 0, len(r.items))
	for _, reg := range r.items {
		cp := *reg
		all = append(all, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []*Registration{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}
