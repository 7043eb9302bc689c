package application_test

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/internal/domain/entity"
	repo "github.com/yhensel/burgers-api/internal/domain/repository"
)

// memRepo is an in-memory UserRepository. WithinTx serializes transactions and
// restores the previous state when fn fails or ctx is done before commit.
type memRepo struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	users map[string]*entity.User
	seq   int

	createErr error
	updateErr error
	deleteErr error
	queryErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]*entity.User{}}
}

func (r *memRepo) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *memRepo) LockByID(ctx context.Context, id string) (*entity.User, error) {
	return r.FindByID(ctx, id)
}

func (r *memRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	now := time.Now()
	u.ID = strconv.Itoa(r.seq)
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = u.Clone()
	return nil
}

func (r *memRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	r.users[u.ID] = u.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memRepo) Paginate(ctx context.Context, page, size int) (*repo.Page, error) {
	return r.page(func(*entity.User) bool { return true }, page, size)
}

func (r *memRepo) Search(ctx context.Context, term string, page, size int) (*repo.Page, error) {
	term = strings.ToLower(term)
	return r.page(func(u *entity.User) bool {
		return strings.Contains(strings.ToLower(u.Name), term) || strings.Contains(strings.ToLower(u.Email), term)
	}, page, size)
}

func (r *memRepo) page(match func(*entity.User) bool, page, size int) (*repo.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	var all []*entity.User
	for _, u := range r.users {
		if match(u) {
			all = append(all, u.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, _ := strconv.Atoi(all[i].ID)
		b, _ := strconv.Atoi(all[j].ID)
		return a < b
	})
	p := &repo.Page{Total: int64(len(all)), Page: page, PerPage: size, Items: []*entity.User{}}
	start := (page - 1) * size
	if start < len(all) {
		end := start + size
		if end > len(all) {
			end = len(all)
		}
		p.Items = all[start:end]
	}
	return p, nil
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(tx repo.UserRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[string]*entity.User, len(r.users))
	for k, v := range r.users {
		snapshot[k] = v.Clone()
	}
	r.mu.Unlock()

	err := fn(r)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.mu.Lock()
		r.users = snapshot
		r.mu.Unlock()
	}
	return err
}

// stored returns the persisted record including its hash.
func (r *memRepo) stored(id string) (*entity.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, false
	}
	return u.Clone(), true
}

var _ repo.UserRepository = (*memRepo)(nil)

type mockIndex struct{ mock.Mock }

func (m *mockIndex) IndexUser(ctx context.Context, u *entity.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockIndex) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) PublishUserEvent(ctx context.Context, ev application.UserEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type mapCache struct {
	mu    sync.Mutex
	users map[string]*entity.User
	gens  map[string]int64
}

func newMapCache() *mapCache {
	return &mapCache{users: map[string]*entity.User{}, gens: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, id string) (*entity.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	if !ok {
		return nil, false, nil
	}
	return u.Clone(), true, nil
}

func (c *mapCache) Generation(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *mapCache) Set(_ context.Context, u *entity.User, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[u.ID] != gen {
		return nil
	}
	cp := u.Clone()
	cp.Password = ""
	c.users[u.ID] = cp
	return nil
}

func (c *mapCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	c.gens[id]++
	return nil
}

// slowFindRepo parks FindByID after it has read the record until release is closed.
// LockByID and transactions go straight to the wrapped memRepo.
type slowFindRepo struct {
	*memRepo
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newSlowFindRepo(r *memRepo) *slowFindRepo {
	return &slowFindRepo{memRepo: r, read: make(chan struct{}), release: make(chan struct{})}
}

func (r *slowFindRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := r.memRepo.FindByID(ctx, id)
	r.once.Do(func() { close(r.read) })
	<-r.release
	return u, err
}

type mockClients struct{ mock.Mock }

func (m *mockClients) FindByID(ctx context.Context, id string) (*entity.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Client), args.Error(1)
}
