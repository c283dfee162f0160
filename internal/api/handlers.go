package api

import (
	"mime/multipart"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/presence"
	"github.com/fathima-sithara/chaty/internal/service"
	"github.com/fathima-sithara/chaty/internal/storage"
	"github.com/fathima-sithara/chaty/internal/utils"
)

type Handler struct {
	accounts *service.AccountService
	convs    *service.ConversationService
	msgs     *service.MessageService
	query    *service.QueryService
	presence presence.Tracker
	log      *zap.Logger
}

type credentialsRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=3,max=32"`
	Password    string `json:"password" validate:"required,min=1,max=72"`
}

type signupRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=3,max=32"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Name        string `json:"name" validate:"required,max=64"`
}

type createConversationRequest struct {
	Users []string `json:"users" validate:"max=256,dive,mongodb"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"max=10000"`
}

type profileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=64"`
}

func bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.Ef(apperr.Validation, "api.bind", "malformed request body")
	}
	if _, err := utils.Validate(v); err != nil {
		return apperr.Ef(apperr.Validation, "api.bind", "%s", err.Error())
	}
	return nil
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	out, err := h.accounts.Signup(c.UserContext(), req.PhoneNumber, req.Password, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, out)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	out, err := h.accounts.Login(c.UserContext(), req.PhoneNumber, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, out)
}

func (h *Handler) Users(c *fiber.Ctx) error {
	users, err := h.query.Users(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, users)
}

func (h *Handler) Search(c *fiber.Ctx) error {
	users, err := h.query.Search(c.UserContext(), identity(c), c.Query("q"))
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, users)
}

func (h *Handler) Profile(c *fiber.Ctx) error {
	u, err := h.query.Profile(c.UserContext(), identity(c))
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, u)
}

// SaveProfile accepts JSON {"name"} or multipart fields name and photo.
func (h *Handler) SaveProfile(c *fiber.Ctx) error {
	var name *string
	var photo *storage.File

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, apperr.Ef(apperr.Validation, "api.profile", "malformed multipart form"))
		}
		if v, ok := form.Value["name"]; ok && len(v) > 0 {
			name = &v[0]
		}
		if fhs := form.File["photo"]; len(fhs) > 0 {
			f, closeFn, err := openUpload(fhs[0])
			if err != nil {
				return writeError(c, err)
			}
			defer closeFn()
			photo = f
		}
	} else {
		var req profileRequest
		if err := bind(c, &req); err != nil {
			return writeError(c, err)
		}
		name = req.Name
	}

	u, err := h.accounts.SaveProfile(c.UserContext(), identity(c), name, photo)
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, u)
}

func (h *Handler) Conversations(c *fiber.Ctx) error {
	views, err := h.query.Conversations(c.UserContext(), identity(c))
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, views)
}

func (h *Handler) CreateConversation(c *fiber.Ctx) error {
	var req createConversationRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	conv, err := h.convs.Create(c.UserContext(), identity(c), req.Users)
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, conv)
}

func (h *Handler) DeleteConversation(c *fiber.Ctx) error {
	if err := h.convs.Delete(c.UserContext(), identity(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

func (h *Handler) Messages(c *fiber.Ctx) error {
	msgs, err := h.query.Messages(c.UserContext(), identity(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, msgs)
}

var attachmentField = regexp.MustCompile(`^attachments\[(\d+)\]\[(thumbnail|file)\]$`)

// SendMessage accepts JSON {"content"} or a multipart form with content and
// attachments[i][thumbnail] / attachments[i][file] parts.
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	var atts []service.Attachment

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, apperr.Ef(apperr.Validation, "api.send", "malformed multipart form"))
		}
		if v := form.Value["content"]; len(v) > 0 {
			req.Content = v[0]
		}
		var closers []func()
		defer func() {
			for _, fn := range closers {
				fn()
			}
		}()
		slots := map[int]*service.Attachment{}
		for field, fhs := range form.File {
			m := attachmentField.FindStringSubmatch(field)
			if m == nil || len(fhs) == 0 {
				continue
			}
			idx, _ := strconv.Atoi(m[1])
			f, closeFn, err := openUpload(fhs[0])
			if err != nil {
				return writeError(c, err)
			}
			closers = append(closers, closeFn)
			slot, ok := slots[idx]
			if !ok {
				slot = &service.Attachment{}
				slots[idx] = slot
			}
			if m[2] == "thumbnail" {
				slot.Thumbnail = f
			} else {
				slot.File = f
			}
		}
		idxs := make([]int, 0, len(slots))
		for i := range slots {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)
		for _, i := range idxs {
			atts = append(atts, *slots[i])
		}
	} else if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if _, err := utils.Validate(req); err != nil {
		return writeError(c, apperr.Ef(apperr.Validation, "api.send", "%s", err.Error()))
	}

	msg, err := h.msgs.Send(c.UserContext(), identity(c), c.Params("id"), req.Content, atts)
	if err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, msg)
}

func (h *Handler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.msgs.Delete(c.UserContext(), identity(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": true})
}

func (h *Handler) Presence(c *fiber.Ctx) error {
	uid := c.Params("id")
	online, err := h.presence.IsOnline(c.UserContext(), uid)
	if err != nil {
		h.log.Warn("presence lookup", zap.String("user", uid), zap.Error(err))
		return writeError(c, apperr.E(apperr.Internal, "api.presence", err))
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"user_id": uid, "online": online})
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func openUpload(fh *multipart.FileHeader) (*storage.File, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperr.E(apperr.Validation, "api.upload", err)
	}
	return &storage.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
