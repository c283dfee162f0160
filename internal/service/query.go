package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
)

const searchLimit = 50

// QueryService serves read-only projections. It never touches the bus.
type QueryService struct {
	users repository.UserRepository
	convs repository.ConversationRepository
	msgs  repository.MessageRepository
}

func NewQueryService(users repository.UserRepository, convs repository.ConversationRepository, msgs repository.MessageRepository) *QueryService {
	return &QueryService{users: users, convs: convs, msgs: msgs}
}

// Conversations lists the actor's conversations, most recently active first.
func (q *QueryService) Conversations(ctx context.Context, actor auth.Identity) ([]*models.ConversationView, error) {
	const op = "query.conversations"

	convs, err := q.convs.ListForMember(ctx, actor.OID)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, op, err)
	}

	var userIDs, lastIDs []primitive.ObjectID
	for _, c := range convs {
		userIDs = append(userIDs, c.Users...)
		if id, ok := c.LastMessageID(); ok {
			lastIDs = append(lastIDs, id)
		}
	}
	users, err := q.userIndex(ctx, userIDs)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, op, err)
	}
	last, err := q.msgs.FindByIDs(ctx, lastIDs)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, op, err)
	}
	lastByID := make(map[primitive.ObjectID]*models.Message, len(last))
	for _, m := range last {
		lastByID[m.ID] = m
	}

	out := make([]*models.ConversationView, 0, len(convs))
	for _, c := range convs {
		v := &models.ConversationView{Conversation: c, Members: make([]*models.User, 0, len(c.Users))}
		for _, id := range c.Users {
			if u, ok := users[id]; ok {
				v.Members = append(v.Members, u)
			}
		}
		if id, ok := c.LastMessageID(); ok {
			if m, ok := lastByID[id]; ok {
				v.LastMessage = messageView(m, users, actor)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Messages returns a conversation's messages in send order.
func (q *QueryService) Messages(ctx context.Context, actor auth.Identity, conversationID string) ([]*models.MessageView, error) {
	const op = "query.messages"

	id, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, apperr.Ef(apperr.NotFound, op, "conversation not found")
	}
	c, err := q.convs.FindForMember(ctx, id, actor.OID)
	if err != nil {
		return nil, storeErr(op, err, "conversation not found")
	}

	msgs, err := q.msgs.FindByIDs(ctx, c.Messages)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, op, err)
	}
	byID := make(map[primitive.ObjectID]*models.Message, len(msgs))
	senders := make([]primitive.ObjectID, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		senders = append(senders, m.Sender)
	}
	users, err := q.userIndex(ctx, senders)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, op, err)
	}

	out := make([]*models.MessageView, 0, len(msgs))
	for _, mid := range c.Messages {
		if m, ok := byID[mid]; ok {
			out = append(out, messageView(m, users, actor))
		}
	}
	return out, nil
}

// Users is the unauthenticated directory listing.
func (q *QueryService) Users(ctx context.Context) ([]*models.User, error) {
	users, err := q.users.List(ctx)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, "query.users", err)
	}
	return users, nil
}

func (q *QueryService) Profile(ctx context.Context, actor auth.Identity) (*models.User, error) {
	u, err := q.users.FindByID(ctx, actor.OID)
	if err != nil {
		return nil, storeErr("query.profile", err, "user not found")
	}
	return u, nil
}

// Search matches query as a literal, case-insensitive substring of display
// names. A blank query yields no results.
func (q *QueryService) Search(ctx context.Context, _ auth.Identity, query string) ([]*models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.User{}, nil
	}
	users, err := q.users.SearchByName(ctx, query, searchLimit)
	if err != nil {
		return nil, apperr.E(apperr.Persistence, "query.search", err)
	}
	return users, nil
}

func (q *QueryService) userIndex(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	uniq := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	users, err := q.users.FindByIDs(ctx, uniq)
	if err != nil {
		return nil, err
	}
	idx := make(map[primitive.ObjectID]*models.User, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx, nil
}

func messageView(m *models.Message, users map[primitive.ObjectID]*models.User, actor auth.Identity) *models.MessageView {
	return &models.MessageView{
		Message:      m,
		SenderUser:   users[m.Sender],
		IsLoggedUser: m.Sender == actor.OID,
	}
}

// CanSubscribe allows the actor's own user topic and the topics of
// conversations the actor currently belongs to.
func (q *QueryService) CanSubscribe(ctx context.Context, actor auth.Identity, topic string) error {
	const op = "query.subscribe"
	if topic == actor.ID {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(topic)
	if err != nil {
		return apperr.Ef(apperr.Validation, op, "invalid topic %q", topic)
	}
	if _, err := q.convs.FindForMember(ctx, id, actor.OID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Ef(apperr.Forbidden, op, "not a member of this conversation")
		}
		return apperr.E(apperr.Persistence, op, err)
	}
	return nil
}
