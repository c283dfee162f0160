package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
)

type ConversationService struct {
	convs  repository.ConversationRepository
	msgs   repository.MessageRepository
	notify Notifier
	log    *zap.Logger
}

func NewConversationService(convs repository.ConversationRepository, msgs repository.MessageRepository, n Notifier, log *zap.Logger) *ConversationService {
	return &ConversationService{convs: convs, msgs: msgs, notify: n, log: log}
}

// Create starts a conversation between the actor and members. Every member
// other than the actor is notified on their user topic.
func (s *ConversationService) Create(ctx context.Context, actor auth.Identity, members []string) (*models.Conversation, error) {
	const op = "conversation.create"

	users := []primitive.ObjectID{actor.OID}
	seen := map[primitive.ObjectID]bool{actor.OID: true}
	for _, raw := range members {
		id, err := parseID(op, "user id", raw)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		users = append(users, id)
	}

	c := &models.Conversation{Users: users, Messages: []primitive.ObjectID{}}
	if err := s.convs.Create(ctx, c); err != nil {
		s.log.Error("create conversation", zap.String("actor", actor.ID), zap.Error(err))
		return nil, apperr.E(apperr.Persistence, op, err)
	}

	s.notify.Notify(models.Event{Type: models.EventConversationCreated, Conversation: c}, hexes(users[1:])...)
	return c, nil
}

// Delete removes the actor from the conversation. When nobody is left the
// conversation and its messages are destroyed; otherwise the remaining
// members are told the membership changed.
func (s *ConversationService) Delete(ctx context.Context, actor auth.Identity, conversationID string) error {
	const op = "conversation.delete"

	id, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return apperr.Ef(apperr.NotFound, op, "failed to delete conversation")
	}

	after, err := s.convs.RemoveMember(ctx, id, actor.OID)
	if err != nil {
		return storeErr(op, err, "failed to delete conversation")
	}

	if len(after.Users) > 0 {
		s.notify.Notify(models.Event{
			Type:         models.EventConversationUpdated,
			Conversation: after,
			Update:       true,
		}, hexes(after.Users)...)
		return nil
	}

	if _, err := s.msgs.DeleteMany(ctx, after.Messages); err != nil {
		s.log.Error("cascade delete messages", zap.String("conversation", conversationID), zap.Error(err))
		return apperr.E(apperr.Persistence, op, err)
	}
	if err := s.convs.DeleteIfEmpty(ctx, id); err != nil {
		s.log.Error("cascade delete conversation", zap.String("conversation", conversationID), zap.Error(err))
		return apperr.E(apperr.Persistence, op, err)
	}
	s.log.Info("conversation removed", zap.String("conversation", conversationID), zap.Int("messages", len(after.Messages)))
	return nil
}
