package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/auth"
	"github.com/fathima-sithara/chaty/internal/media"
	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
	"github.com/fathima-sithara/chaty/internal/storage"
)

// TokenIssuer is satisfied by *auth.Resolver.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

type AccountService struct {
	users    repository.UserRepository
	tokens   TokenIssuer
	store    storage.Store
	hashCost int
	log      *zap.Logger
}

func NewAccountService(users repository.UserRepository, tokens TokenIssuer, store storage.Store, hashCost int, log *zap.Logger) *AccountService {
	return &AccountService{users: users, tokens: tokens, store: store, hashCost: hashCost, log: log}
}

func (s *AccountService) Signup(ctx context.Context, phone, password, name string) (*models.AuthPayload, error) {
	const op = "account.signup"

	phone, name = strings.TrimSpace(phone), strings.TrimSpace(name)
	if phone == "" || password == "" || name == "" {
		return nil, apperr.Ef(apperr.Validation, op, "phone number, password and name are required")
	}

	hash, err := auth.HashPassword(password, s.hashCost)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, err)
	}
	u := &models.User{PhoneNumber: phone, Password: hash, Name: name}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Ef(apperr.Conflict, op, "phone number %s is already registered", phone)
		}
		return nil, apperr.E(apperr.Persistence, op, err)
	}
	s.log.Info("user signed up", zap.String("user", u.ID.Hex()))
	return s.issue(op, u.ID.Hex())
}

// Login reports an unknown phone number and a wrong password differently.
func (s *AccountService) Login(ctx context.Context, phone, password string) (*models.AuthPayload, error) {
	const op = "account.login"

	phone = strings.TrimSpace(phone)
	u, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, storeErr(op, err, "can't find user with phone number: "+phone)
	}
	if !auth.CheckPassword(u.Password, password) {
		return nil, apperr.Ef(apperr.Forbidden, op, "wrong password please try again")
	}
	return s.issue(op, u.ID.Hex())
}

func (s *AccountService) issue(op, userID string) (*models.AuthPayload, error) {
	token, exp, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, apperr.E(apperr.Internal, op, err)
	}
	return &models.AuthPayload{UserID: userID, Token: token, ExpiresAt: exp}, nil
}

// SaveProfile applies the provided fields only. A photo is cropped to a
// square JPEG before it is stored.
func (s *AccountService) SaveProfile(ctx context.Context, actor auth.Identity, name *string, photo *storage.File) (*models.User, error) {
	const op = "account.save_profile"

	var ch models.ProfileChanges
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperr.Ef(apperr.Validation, op, "name cannot be empty")
		}
		ch.Name = &trimmed
	}
	if photo != nil {
		loc, err := s.storePhoto(ctx, actor, *photo)
		if err != nil {
			return nil, err
		}
		ch.ProfilePhoto = &loc
	}

	u, err := s.users.UpdateProfile(ctx, actor.OID, ch)
	if err != nil {
		return nil, storeErr(op, err, "user not found")
	}
	return u, nil
}

func (s *AccountService) storePhoto(ctx context.Context, actor auth.Identity, photo storage.File) (string, error) {
	const op = "account.save_profile"

	data, err := io.ReadAll(photo.Body)
	if err != nil {
		return "", apperr.E(apperr.Validation, op, err)
	}
	avatar, err := media.Avatar(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Ef(apperr.Validation, op, "profile photo must be an image")
	}
	loc, err := s.store.Save(ctx, storage.File{Name: "avatar.jpg", ContentType: "image/jpeg", Body: bytes.NewReader(avatar)})
	if err != nil {
		s.log.Error("store profile photo", zap.String("user", actor.ID), zap.Error(err))
		return "", apperr.E(apperr.Persistence, op, err)
	}
	return loc, nil
}
