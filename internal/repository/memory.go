package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"microboard/internal/model"
)

// MemoryUserStore keeps users in process memory. It is selected with
// STORE_DRIVER=memory and backs the service tests.
type MemoryUserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]model.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[int64]model.User{}}
}

func (s *MemoryUserStore) FindByID(_ context.Context, id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *MemoryUserStore) FindByIDs(_ context.Context, ids []int64) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok && !slices.ContainsFunc(users, func(x model.User) bool { return x.ID == id }) {
			u.PasswordHash = ""
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b model.User) int { return int(a.ID - b.ID) })
	return users, nil
}

func (s *MemoryUserStore) ExistsByUsernameOrEmail(_ context.Context, username string, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(username, email), nil
}

func (s *MemoryUserStore) existsLocked(username string, email string) bool {
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *MemoryUserStore) Create(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.existsLocked(u.Username, u.Email) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	s.nextID++
	now := time.Now().UTC()
	u.ID, u.CreatedAt, u.UpdatedAt = s.nextID, now, now
	s.users[u.ID] = u
	return u, nil
}

// Delete removes a user. Only used to simulate a subject deleted after issuance.
func (s *MemoryUserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

type MemoryPostStore struct {
	mu     sync.RWMutex
	nextID int64
	posts  map[int64]model.Post
}

func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{posts: map[int64]model.Post{}}
}

func (s *MemoryPostStore) List(_ context.Context, query model.PostQuery) ([]model.Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	matched := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if search == "" ||
			strings.Contains(strings.ToLower(p.Title), search) ||
			strings.Contains(strings.ToLower(p.Content), search) {
			matched = append(matched, p)
		}
	}
	// Newest first; ids break ties the way the SQL ordering does.
	slices.SortFunc(matched, func(a, b model.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

func (s *MemoryPostStore) FindByID(_ context.Context, id int64) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return model.Post{}, model.ErrPostNotFound
	}
	return p, nil
}

func (s *MemoryPostStore) Create(_ context.Context, p model.Post) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	p.ID, p.CreatedAt, p.UpdatedAt = s.nextID, now, now
	s.posts[p.ID] = p
	return p, nil
}

func (s *MemoryPostStore) Update(_ context.Context, p model.Post) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.posts[p.ID]
	if !ok {
		return model.Post{}, model.ErrPostNotFound
	}
	stored.Title, stored.Content, stored.UpdatedAt = p.Title, p.Content, time.Now().UTC()
	s.posts[p.ID] = stored
	return stored, nil
}

func (s *MemoryPostStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return model.ErrPostNotFound
	}
	delete(s.posts, id)
	return nil
}

type MemoryCommentStore struct {
	mu       sync.RWMutex
	nextID   int64
	comments map[int64]model.Comment
}

func NewMemoryCommentStore() *MemoryCommentStore {
	return &MemoryCommentStore{comments: map[int64]model.Comment{}}
}

func (s *MemoryCommentStore) ListByPost(_ context.Context, query model.CommentQuery) ([]model.Comment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == query.PostID {
			matched = append(matched, c)
		}
	}
	slices.SortFunc(matched, func(a, b model.Comment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return paginate(matched, query.Page, query.Limit), len(matched), nil
}

func (s *MemoryCommentStore) FindByID(_ context.Context, id int64) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return model.Comment{}, model.ErrCommentNotFound
	}
	return c, nil
}

func (s *MemoryCommentStore) Create(_ context.Context, c model.Comment) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	c.ID, c.CreatedAt, c.UpdatedAt = s.nextID, now, now
	s.comments[c.ID] = c
	return c, nil
}

func (s *MemoryCommentStore) Update(_ context.Context, c model.Comment) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.comments[c.ID]
	if !ok {
		return model.Comment{}, model.ErrCommentNotFound
	}
	stored.Content, stored.UpdatedAt = c.Content, time.Now().UTC()
	s.comments[c.ID] = stored
	return stored, nil
}

func (s *MemoryCommentStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return model.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

func paginate[T any](items []T, page int, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+limit, len(items))]
}
