package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"identity-auth/internal/domain"
)

// MemoryStore implementa Store en memoria para los tests de servicios y
// handlers. Las transacciones se serializan y se deshacen restaurando una
// copia del estado.
type MemoryStore struct {
	state *memState
	inTx  bool
}

type memState struct {
	txMu sync.Mutex

	mu         sync.Mutex
	users      map[int64]domain.User
	codes      map[int64]domain.ResetCode
	nextUserID int64
	nextCodeID int64
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users: make(map[int64]domain.User),
			codes: make(map[int64]domain.ResetCode),
			now:   time.Now,
		},
	}
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUserRepository{state: s.state}
}

func (s *MemoryStore) ResetCodes() ResetCodeRepository {
	return &memoryResetCodeRepository{state: s.state}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	snap := s.state.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.state.restore(snap)
			panic(p)
		}
		if err != nil {
			s.state.restore(snap)
		}
	}()

	return fn(&MemoryStore{state: s.state, inTx: true})
}

type memSnapshot struct {
	users      map[int64]domain.User
	codes      map[int64]domain.ResetCode
	nextUserID int64
	nextCodeID int64
}

func (st *memState) snapshot() memSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := memSnapshot{
		users:      make(map[int64]domain.User, len(st.users)),
		codes:      make(map[int64]domain.ResetCode, len(st.codes)),
		nextUserID: st.nextUserID,
		nextCodeID: st.nextCodeID,
	}
	for k, v := range st.users {
		snap.users[k] = v
	}
	for k, v := range st.codes {
		snap.codes[k] = v
	}
	return snap
}

func (st *memState) restore(snap memSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.users = snap.users
	st.codes = snap.codes
	st.nextUserID = snap.nextUserID
	st.nextCodeID = snap.nextCodeID
}

type memoryUserRepository struct {
	state *memState
}

func (r *memoryUserRepository) find(match func(domain.User) bool) (domain.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	ids := r.sortedIDs()
	for _, id := range ids {
		if u := r.state.users[id]; match(u) {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

// sortedIDs requiere mu tomado.
func (r *memoryUserRepository) sortedIDs() []int64 {
	ids := make([]int64, 0, len(r.state.users))
	for id := range r.state.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *memoryUserRepository) FindByHandleOrMail(_ context.Context, s string) (domain.User, error) {
	if u, err := r.find(func(u domain.User) bool { return u.Username == s }); err == nil {
		return u, nil
	}
	return r.find(func(u domain.User) bool { return u.Email == s })
}

func (r *memoryUserRepository) ExistsByHandle(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByHandle(ctx, username)
	return err == nil, nil
}

func (r *memoryUserRepository) ExistsByMail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByMail(ctx, email)
	return err == nil, nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id int64) (domain.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	u, ok := r.state.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepository) FindByMail(_ context.Context, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *memoryUserRepository) FindByHandle(_ context.Context, username string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *memoryUserRepository) Save(_ context.Context, user domain.User) (domain.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	for id, other := range r.state.users {
		if id == user.ID {
			continue
		}
		if other.Username == user.Username {
			return domain.User{}, fmt.Errorf("%w: users_username_key", ErrConflict)
		}
		if other.Email == user.Email {
			return domain.User{}, fmt.Errorf("%w: users_email_key", ErrConflict)
		}
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	if user.ID == 0 {
		r.state.nextUserID++
		user.ID = r.state.nextUserID
		user.CreatedAt = r.state.now().UTC()
		r.state.users[user.ID] = user
		return user, nil
	}

	existing, ok := r.state.users[user.ID]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	user.CreatedAt = existing.CreatedAt
	r.state.users[user.ID] = user
	return user, nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id int64) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if _, ok := r.state.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.state.users, id)
	return nil
}

func (r *memoryUserRepository) ListPage(_ context.Context, pageNo, pageSize int) (domain.Page[domain.User], error) {
	if pageNo < 0 || pageSize <= 0 {
		return domain.Page[domain.User]{}, fmt.Errorf("invalid page request: page=%d size=%d", pageNo, pageSize)
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	ids := r.sortedIDs()
	start := len(ids)
	if pageNo <= len(ids)/pageSize {
		start = min(pageNo*pageSize, len(ids))
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	users := make([]domain.User, 0, end-start)
	for _, id := range ids[start:end] {
		users = append(users, r.state.users[id])
	}
	return domain.NewPage(users, pageNo, pageSize, int64(len(ids))), nil
}

type memoryResetCodeRepository struct {
	state *memState
}

// LockMail no hace nada: las transacciones en memoria ya están serializadas.
func (r *memoryResetCodeRepository) LockMail(context.Context, string) error {
	return nil
}

func (r *memoryResetCodeRepository) DeleteByMail(_ context.Context, email string) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	for id, c := range r.state.codes {
		if c.Email == email {
			delete(r.state.codes, id)
		}
	}
	return nil
}

func (r *memoryResetCodeRepository) Insert(_ context.Context, code domain.ResetCode) (domain.ResetCode, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if !code.Used {
		for _, c := range r.state.codes {
			if c.Email == code.Email && !c.Used {
				return domain.ResetCode{}, fmt.Errorf("%w: password_reset_otp_one_unused", ErrConflict)
			}
		}
	}
	r.state.nextCodeID++
	code.ID = r.state.nextCodeID
	r.state.codes[code.ID] = code
	return code, nil
}

func (r *memoryResetCodeRepository) FindActive(_ context.Context, email, code string) (domain.ResetCode, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	var (
		found domain.ResetCode
		ok    bool
	)
	for _, c := range r.state.codes {
		if c.Email == email && c.Code == code && !c.Used && c.ID > found.ID {
			found, ok = c, true
		}
	}
	if !ok {
		return domain.ResetCode{}, ErrNotFound
	}
	return found, nil
}

func (r *memoryResetCodeRepository) MarkUsed(_ context.Context, id int64) (bool, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	c, ok := r.state.codes[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	r.state.codes[id] = c
	return true, nil
}

func (r *memoryResetCodeRepository) CountUnused(_ context.Context, email string) (int, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	n := 0
	for _, c := range r.state.codes {
		if c.Email == email && !c.Used {
			n++
		}
	}
	return n, nil
}
