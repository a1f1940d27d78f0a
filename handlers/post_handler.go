package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"beijjati-server/middleware"
	"beijjati-server/models"
	"beijjati-server/utils/errors"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errEvidenceRequired = errors.BadRequest("Photo evidence is required for beijjati posts")
	errEvidenceRejected = errors.BadRequest("Photo evidence rejected: it must show solved Q1-Q4 work")
)

// PostHandlerConfig carries the optional parts of post creation. A nil Evidence disables the
// evidence gate; a nil Archive skips storing accepted photos.
type PostHandlerConfig struct {
	Evidence       EvidenceChecker
	Archive        EvidenceArchiver
	MaxUploadBytes int64
}

type PostHandler struct {
	posts  PostStore
	users  UserDirectory
	cfg    PostHandlerConfig
	logger logrus.FieldLogger
}

func NewPostHandler(posts PostStore, users UserDirectory, cfg PostHandlerConfig, logger logrus.FieldLogger) *PostHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &PostHandler{
		posts:  posts,
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

type postInput struct {
	Content        string   `json:"content"`
	IsBeizzati     bool     `json:"is_beizzati"`
	MentionedUsers []string `json:"mentioned_users"`
	image          []byte
}

// CreatePost accepts either a JSON body or a multipart form with an optional "image" part.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	input, err := h.readPostInput(w, r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if strings.TrimSpace(input.Content) == "" {
		middleware.WriteError(w, errors.BadRequest("Content is required"))
		return
	}

	var evidenceKey string
	if input.IsBeizzati {
		if h.cfg.Evidence != nil {
			if len(input.image) == 0 {
				middleware.WriteError(w, errEvidenceRequired)
				return
			}
			if !h.cfg.Evidence.LooksLikeEvidence(r.Context(), input.image) {
				middleware.WriteError(w, errEvidenceRejected)
				return
			}
		}
		if h.cfg.Archive != nil && len(input.image) > 0 {
			key, err := h.cfg.Archive.Store(r.Context(), id.UserID, input.image)
			if err != nil {
				h.logger.WithError(err).WithField("author_id", id.UserID.Hex()).Warn("Failed to archive evidence")
			} else {
				evidenceKey = key
			}
		}
	}

	mentioned, err := h.resolveMentions(r, input.MentionedUsers)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	postID, err := h.posts.Create(r.Context(), models.NewPost{
		AuthorID:     id.UserID,
		Content:      input.Content,
		IsAccusation: input.IsBeizzati,
		MentionedIDs: mentioned,
		EvidenceKey:  evidenceKey,
	})
	if errors.Is(err, errors.ErrUserNotFound) {
		middleware.WriteError(w, errors.BadRequest("Failed to create post"))
		return
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "Post created successfully",
		"post_id": postID.Hex(),
	})
}

func (h *PostHandler) readPostInput(w http.ResponseWriter, r *http.Request) (postInput, error) {
	var input postInput
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := decodeJSON(r, &input)
		return input, err
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		return input, errors.BadRequest("Invalid multipart form")
	}
	input.Content = r.FormValue("content")
	input.IsBeizzati, _ = strconv.ParseBool(r.FormValue("is_beizzati"))

	// Browsers send the mention list as a JSON array inside a form field.
	if raw := r.FormValue("mentioned_users"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.MentionedUsers); err != nil {
			return input, errors.BadRequest("mentioned_users must be a JSON array of usernames")
		}
	}

	file, _, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return input, nil
	}
	if err != nil {
		return input, errors.BadRequest("Invalid image upload")
	}
	defer file.Close()

	input.image, err = io.ReadAll(file)
	if err != nil {
		return input, errors.BadRequest("Invalid image upload")
	}
	return input, nil
}

// resolveMentions maps usernames to ids, silently dropping names nobody owns.
func (h *PostHandler) resolveMentions(r *http.Request, usernames []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(usernames))
	for _, name := range usernames {
		if name == "" {
			continue
		}
		user, err := h.users.FindByUsername(r.Context(), name)
		if errors.Is(err, errors.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (h *PostHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	posts, err := h.posts.ListForUser(r.Context(), id.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	posts, err := h.posts.ListByUser(r.Context(), user.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) GetMentions(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	posts, err := h.posts.ListMentions(r.Context(), user.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	outcome, err := h.posts.Like(r.Context(), mux.Vars(r)["id"], id.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !outcome.Applied() {
		middleware.WriteError(w, errors.BadRequest("Failed to like post"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message("Post liked successfully"))
}

func (h *PostHandler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	outcome, err := h.posts.Unlike(r.Context(), mux.Vars(r)["id"], id.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !outcome.Applied() {
		middleware.WriteError(w, errors.BadRequest("Failed to unlike post"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, message("Post unliked successfully"))
}
