package handlers

import (
	"fmt"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/services"
)

var allowedAvatarExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

type UserHandler struct {
	profiles  *services.ProfileService
	avatarDir string
	logger    *zap.Logger
}

func NewUserHandler(profiles *services.ProfileService, avatarDir string, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{profiles: profiles, avatarDir: avatarDir, logger: logger}
}

type updateProfileBody struct {
	FullName         string `json:"fullName" binding:"required"`
	Bio              string `json:"bio"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
}

type profilePicBody struct {
	ProfilePic string `json:"profilePic" binding:"required"`
}

func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	user, err := h.profiles.GetMe(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"message": "fullName is required"})
		return
	}

	user, err := h.profiles.UpdateProfile(c.Request.Context(), actor, models.ProfileUpdate{
		FullName:         body.FullName,
		Bio:              body.Bio,
		NativeLanguage:   body.NativeLanguage,
		LearningLanguage: body.LearningLanguage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, user)
}

// UpdateProfilePicture accepts either {"profilePic": url} or a multipart "file" upload.
func (h *UserHandler) UpdateProfilePicture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	var picURL string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		saved, status, err := h.saveAvatar(c, actor)
		if err != nil {
			c.JSON(status, gin.H{"message": err.Error()})
			return
		}
		picURL = saved
	} else {
		var body profilePicBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(nethttp.StatusBadRequest, gin.H{"message": "profilePic is required"})
			return
		}
		picURL = body.ProfilePic
	}

	user, err := h.profiles.UpdateProfilePicture(c.Request.Context(), actor, picURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, user)
}

func (h *UserHandler) DeleteProfilePicture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	user, err := h.profiles.GetMe(ctx, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.profiles.ClearProfilePicture(ctx, actor); err != nil {
		writeError(c, err)
		return
	}

	if target, ok := h.avatarFile(actor, user.ProfilePic); ok {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove avatar file", zap.String("user_id", actor), zap.Error(err))
		}
	}

	c.Status(nethttp.StatusNoContent)
}

func (h *UserHandler) GetProfileStats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	stats, err := h.profiles.GetProfileStats(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, stats)
}

func (h *UserHandler) saveAvatar(c *gin.Context, actor string) (string, int, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", nethttp.StatusBadRequest, fmt.Errorf("missing file")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAvatarExt[ext] {
		return "", nethttp.StatusBadRequest, fmt.Errorf("unsupported image type %q", ext)
	}

	if filepath.Base(actor) != actor {
		return "", nethttp.StatusBadRequest, fmt.Errorf("invalid user id")
	}
	userDir := filepath.Join(h.avatarDir, actor)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		h.logger.Error("failed to create upload directory", zap.String("dir", userDir), zap.Error(err))
		return "", nethttp.StatusInternalServerError, fmt.Errorf("failed to create upload directory")
	}

	filename := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(userDir, filename)); err != nil {
		h.logger.Error("failed to save avatar", zap.String("user_id", actor), zap.Error(err))
		return "", nethttp.StatusInternalServerError, fmt.Errorf("failed to save file")
	}

	return services.AvatarURLPrefix + actor + "/" + filename, 0, nil
}

// avatarFile resolves a stored picture to a file under avatarDir. Only actor's
// own uploads resolve; external URLs and anything leaving avatarDir do not.
func (h *UserHandler) avatarFile(actor, picURL string) (string, bool) {
	if !services.OwnsAvatarPath(actor, picURL) {
		return "", false
	}
	target := filepath.Join(h.avatarDir, filepath.FromSlash(strings.TrimPrefix(picURL, services.AvatarURLPrefix)))
	rel, err := filepath.Rel(h.avatarDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
