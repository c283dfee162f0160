// Package memory holds map-backed repositories for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
)

// Store keeps all three collections behind one lock so multi-field
// updates are atomic the way single-document Mongo updates are.
type Store struct {
	mu            sync.RWMutex
	users         map[primitive.ObjectID]models.User
	conversations map[primitive.ObjectID]models.Conversation
	messages      map[primitive.ObjectID]models.Message

	// FailAppend makes AppendMessage return this error when set.
	FailAppend error
}

func New() *Store {
	return &Store{
		users:         make(map[primitive.ObjectID]models.User),
		conversations: make(map[primitive.ObjectID]models.Conversation),
		messages:      make(map[primitive.ObjectID]models.Message),
	}
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s} }

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func cloneConversation(c models.Conversation) *models.Conversation {
	c.Users = cloneIDs(c.Users)
	c.Messages = cloneIDs(c.Messages)
	return &c
}

func cloneMessage(m models.Message) *models.Message {
	files := make([]models.Attachment, len(m.Files))
	copy(files, m.Files)
	m.Files = files
	return &m
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type UserRepo struct{ s *Store }

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.PhoneNumber == u.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.ModifiedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r *UserRepo) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.PhoneNumber == phone {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	return r.filter(func(*models.User) bool { return true }, 0), nil
}

func (r *UserRepo) SearchByName(_ context.Context, query string, limit int64) ([]*models.User, error) {
	q := strings.ToLower(query)
	return r.filter(func(u *models.User) bool {
		return strings.Contains(strings.ToLower(u.Name), q)
	}, limit), nil
}

func (r *UserRepo) filter(keep func(*models.User) bool, limit int64) []*models.User {
	r.s.mu.RLock()
	out := make([]*models.User, 0)
	for _, u := range r.s.users {
		u := u
		if keep(&u) {
			out = append(out, &u)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (r *UserRepo) UpdateProfile(_ context.Context, id primitive.ObjectID, ch models.ProfileChanges) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.ProfilePhoto != nil {
		u.ProfilePhoto = *ch.ProfilePhoto
	}
	u.ModifiedAt = time.Now().UTC()
	r.s.users[id] = u
	return &u, nil
}

type ConversationRepo struct{ s *Store }

var _ repository.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) Create(_ context.Context, c *models.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Messages == nil {
		c.Messages = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	c.CreatedAt, c.ModifiedAt = now, now
	r.s.conversations[c.ID] = *cloneConversation(*c)
	return nil
}

// Get returns a conversation regardless of membership.
func (r *ConversationRepo) Get(id primitive.ObjectID) (*models.Conversation, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, false
	}
	return cloneConversation(c), true
}

func (r *ConversationRepo) FindForMember(_ context.Context, id, member primitive.ObjectID) (*models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok || !contains(c.Users, member) {
		return nil, repository.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *ConversationRepo) FindByMessage(_ context.Context, messageID, member primitive.ObjectID) (*models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.conversations {
		if contains(c.Messages, messageID) && contains(c.Users, member) {
			return cloneConversation(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ConversationRepo) ListForMember(_ context.Context, member primitive.ObjectID) ([]*models.Conversation, error) {
	r.s.mu.RLock()
	out := make([]*models.Conversation, 0)
	for _, c := range r.s.conversations {
		if contains(c.Users, member) {
			out = append(out, cloneConversation(c))
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt.After(out[j].ModifiedAt) })
	return out, nil
}

func (r *ConversationRepo) RemoveMember(_ context.Context, id, member primitive.ObjectID) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok || !contains(c.Users, member) {
		return nil, repository.ErrNotFound
	}
	c.Users = without(c.Users, member)
	c.ModifiedAt = time.Now().UTC()
	r.s.conversations[id] = c
	return cloneConversation(c), nil
}

func (r *ConversationRepo) DeleteIfEmpty(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok || len(c.Users) != 0 {
		return repository.ErrNotFound
	}
	delete(r.s.conversations, id)
	return nil
}

func (r *ConversationRepo) AppendMessage(_ context.Context, id, member, messageID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAppend != nil {
		return r.s.FailAppend
	}
	c, ok := r.s.conversations[id]
	if !ok || !contains(c.Users, member) {
		return repository.ErrNotFound
	}
	c.Messages = append(cloneIDs(c.Messages), messageID)
	c.ModifiedAt = time.Now().UTC()
	r.s.conversations[id] = c
	return nil
}

func (r *ConversationRepo) DetachMessage(_ context.Context, id, messageID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	c.Messages = without(c.Messages, messageID)
	r.s.conversations[id] = c
	return nil
}

type MessageRepo struct{ s *Store }

var _ repository.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Insert(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.Files == nil {
		m.Files = []models.Attachment{}
	}
	now := time.Now().UTC()
	m.CreatedAt, m.ModifiedAt = now, now
	r.s.messages[m.ID] = *cloneMessage(*m)
	return nil
}

func (r *MessageRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (r *MessageRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.s.messages[id]; ok {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (r *MessageRepo) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.messages[id]; !ok {
		return 0, nil
	}
	delete(r.s.messages, id)
	return 1, nil
}

func (r *MessageRepo) DeleteMany(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.s.messages[id]; ok {
			delete(r.s.messages, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored messages.
func (r *MessageRepo) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.messages)
}
