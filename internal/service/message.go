package service

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/media"
	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
	"github.com/fathima-sithara/chaty/internal/storage"
)

// Attachment is one uploaded slot of a message. Either side may be nil.
type Attachment struct {
	Thumbnail *storage.File
	File      *storage.File
}

type MessageService struct {
	convs  repository.ConversationRepository
	msgs   repository.MessageRepository
	store  storage.Store
	notify Notifier
	log    *zap.Logger
}

func NewMessageService(convs repository.ConversationRepository, msgs repository.MessageRepository, store storage.Store, n Notifier, log *zap.Logger) *MessageService {
	return &MessageService{convs: convs, msgs: msgs, store: store, notify: n, log: log}
}

// Send stores a message and appends it to the conversation. Subscribers of the
// conversation topic are notified only once the append has succeeded.
func (s *MessageService) Send(ctx context.Context, actor auth.Identity, conversationID, content string, atts []Attachment) (*models.Message, error) {
	const op = "message.send"

	convID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, apperr.Ef(apperr.NotFound, op, "conversation not found")
	}
	if strings.TrimSpace(content) == "" && len(atts) == 0 {
		return nil, apperr.Ef(apperr.Validation, op, "message needs content or an attachment")
	}
	if _, err := s.convs.FindForMember(ctx, convID, actor.OID); err != nil {
		return nil, storeErr(op, err, "conversation not found")
	}

	files := make([]models.Attachment, 0, len(atts))
	for _, a := range atts {
		stored, err := s.storeAttachment(ctx, a)
		if err != nil {
			s.log.Error("store attachment", zap.String("actor", actor.ID), zap.Error(err))
			s.discard(ctx, append(files, stored))
			return nil, apperr.E(apperr.Persistence, op, err)
		}
		files = append(files, stored)
	}

	msg := &models.Message{Content: content, Sender: actor.OID, Files: files}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		s.discard(ctx, files)
		return nil, apperr.E(apperr.Persistence, op, err)
	}

	if err := s.convs.AppendMessage(ctx, convID, actor.OID, msg.ID); err != nil {
		s.log.Warn("message orphaned, append failed",
			zap.String("message", msg.ID.Hex()),
			zap.String("conversation", conversationID),
			zap.Error(err))
		return nil, storeErr(op, err, "conversation not found")
	}

	s.notify.Notify(models.Event{Type: models.EventMessageCreated, Message: msg}, conversationID)
	return msg, nil
}

// discard removes uploads no message will reference. Failures are logged only.
func (s *MessageService) discard(ctx context.Context, files []models.Attachment) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range files {
		for _, loc := range []string{a.Thumbnail, a.File} {
			if loc == "" {
				continue
			}
			if err := s.store.Remove(ctx, loc); err != nil {
				s.log.Warn("remove unreferenced upload", zap.String("locator", loc), zap.Error(err))
			}
		}
	}
}

func (s *MessageService) storeAttachment(ctx context.Context, a Attachment) (models.Attachment, error) {
	var out models.Attachment
	var err error

	if a.Thumbnail != nil {
		if out.Thumbnail, err = s.store.Save(ctx, *a.Thumbnail); err != nil {
			return out, err
		}
	}
	if a.File == nil {
		return out, nil
	}
	if a.Thumbnail != nil || !media.IsImage(a.File.ContentType) {
		out.File, err = s.store.Save(ctx, *a.File)
		return out, err
	}

	// image without a thumbnail: keep the bytes to derive one
	data, err := io.ReadAll(a.File.Body)
	if err != nil {
		return out, err
	}
	f := *a.File
	f.Body = bytes.NewReader(data)
	if out.File, err = s.store.Save(ctx, f); err != nil {
		return out, err
	}
	thumb, err := media.Thumbnail(bytes.NewReader(data))
	if err != nil {
		s.log.Debug("skip thumbnail", zap.String("file", a.File.Name), zap.Error(err))
		return out, nil
	}
	name := strings.TrimSuffix(a.File.Name, path.Ext(a.File.Name)) + "_thumb.jpg"
	out.Thumbnail, err = s.store.Save(ctx, storage.File{Name: name, ContentType: "image/jpeg", Body: bytes.NewReader(thumb)})
	return out, err
}

// Delete removes a message the actor can see through conversation
// membership. Nothing is published.
func (s *MessageService) Delete(ctx context.Context, actor auth.Identity, messageID string) error {
	const op = "message.delete"

	id, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return apperr.Ef(apperr.NotFound, op, "message not found")
	}
	conv, err := s.convs.FindByMessage(ctx, id, actor.OID)
	if err != nil {
		return storeErr(op, err, "message not found")
	}

	n, err := s.msgs.Delete(ctx, id)
	if err != nil {
		return apperr.E(apperr.Persistence, op, err)
	}
	if n == 0 {
		return apperr.Ef(apperr.DeleteFailed, op, "failed to delete message")
	}

	if err := s.convs.DetachMessage(ctx, conv.ID, id); err != nil {
		s.log.Warn("detach deleted message", zap.String("message", messageID), zap.Error(err))
	}
	return nil
}
