package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/services"
)

type userFixture struct {
	friends  *mocks.MockFriendRepository
	users    *mocks.MockUserRepository
	activity *mocks.MockActivityCounter
	handler  *UserHandler
	router   *gin.Engine
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		friends:  new(mocks.MockFriendRepository),
		users:    new(mocks.MockUserRepository),
		activity: new(mocks.MockActivityCounter),
	}
	friendSvc := newFriendService(f.friends, f.users)
	profiles := services.NewProfileService(f.users, friendSvc, f.activity, zap.NewNop())
	f.handler = NewUserHandler(profiles, t.TempDir(), zap.NewNop())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/users", withActor("alice"))
	api.GET("/me", f.handler.GetMe)
	api.PUT("/profile", f.handler.UpdateProfile)
	api.GET("/profile/stats", f.handler.GetProfileStats)
	api.POST("/profile/picture", f.handler.UpdateProfilePicture)
	api.DELETE("/profile/picture", f.handler.DeleteProfilePicture)
	f.router = r
	return f
}

func (f *userFixture) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetMeOK(t *testing.T) {
	f := newUserFixture(t)
	f.users.On("GetByID", mock.Anything, "alice").Return(&models.User{ID: "alice", FullName: "Alice"}, nil).Once()

	rec := f.do(http.MethodGet, "/api/users/me", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fullName":"Alice"`)
	f.users.AssertExpectations(t)
}

func TestGetMeNotFound(t *testing.T) {
	f := newUserFixture(t)
	f.users.On("GetByID", mock.Anything, "alice").Return(nil, repositories.ErrNotFound).Once()

	rec := f.do(http.MethodGet, "/api/users/me", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	expected := models.ProfileUpdate{FullName: "Alice Smith", Bio: "hola", NativeLanguage: "english", LearningLanguage: "spanish"}
	f.users.On("UpdateProfile", mock.Anything, "alice", expected).
		Return(&models.User{ID: "alice", FullName: "Alice Smith", NativeLanguage: "english", LearningLanguage: "spanish", Bio: "hola"}, nil).Once()

	body := `{"fullName":" Alice Smith ","bio":"hola","nativeLanguage":"English","learningLanguage":" Spanish"}`
	rec := f.do(http.MethodPut, "/api/users/profile", "application/json", strings.NewReader(body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"learningLanguage":"spanish"`)
	f.users.AssertExpectations(t)
}

func TestUpdateProfileRequiresFullName(t *testing.T) {
	f := newUserFixture(t)

	rec := f.do(http.MethodPut, "/api/users/profile", "application/json", strings.NewReader(`{"bio":"x"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/users/profile", "application/json", strings.NewReader(`{"fullName":"   "}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProfilePictureURL(t *testing.T) {
	f := newUserFixture(t)
	url := "https://avatar.iran.liara.run/public/12.png"
	f.users.On("SetProfilePic", mock.Anything, "alice", url).Return(&models.User{ID: "alice", ProfilePic: url}, nil).Once()

	rec := f.do(http.MethodPost, "/api/users/profile/picture", "application/json", strings.NewReader(`{"profilePic":"`+url+`"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), url)
	f.users.AssertExpectations(t)
}

func TestUpdateProfilePictureRejectsBadURL(t *testing.T) {
	f := newUserFixture(t)

	rec := f.do(http.MethodPost, "/api/users/profile/picture", "application/json", strings.NewReader(`{"profilePic":"javascript:alert(1)"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "SetProfilePic", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadProfilePicture(t *testing.T) {
	f := newUserFixture(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "avatar.png")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("avatar-content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	var storedURL string
	f.users.On("SetProfilePic", mock.Anything, "alice", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { storedURL = args.String(2) }).
		Return(&models.User{ID: "alice"}, nil).Once()

	rec := f.do(http.MethodPost, "/api/users/profile/picture", writer.FormDataContentType(), body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(storedURL, "/uploads/avatars/alice/"), storedURL)
	assert.True(t, strings.HasSuffix(storedURL, ".png"))

	relativePath := strings.TrimPrefix(storedURL, "/uploads/avatars/")
	content, err := os.ReadFile(filepath.Join(f.handler.avatarDir, filepath.FromSlash(relativePath)))
	require.NoError(t, err)
	assert.Equal(t, "avatar-content", string(content))
}

func TestUploadProfilePictureRejectsExtension(t *testing.T) {
	f := newUserFixture(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "script.sh")
	require.NoError(t, err)
	_, err = part.Write([]byte("#!/bin/sh"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := f.do(http.MethodPost, "/api/users/profile/picture", writer.FormDataContentType(), body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProfilePicture(t *testing.T) {
	f := newUserFixture(t)

	avatarURL := "/uploads/avatars/alice/to-delete.png"
	filePath := filepath.Join(f.handler.avatarDir, "alice", "to-delete.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(t, os.WriteFile(filePath, []byte("content"), 0o644))

	f.users.On("GetByID", mock.Anything, "alice").Return(&models.User{ID: "alice", ProfilePic: avatarURL}, nil).Once()
	f.users.On("SetProfilePic", mock.Anything, "alice", "").Return(&models.User{ID: "alice"}, nil).Once()

	rec := f.do(http.MethodDelete, "/api/users/profile/picture", "", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(filePath)
	assert.True(t, os.IsNotExist(err))
	f.users.AssertExpectations(t)
}

func TestGetProfileStats(t *testing.T) {
	f := newUserFixture(t)
	f.friends.On("CountFriends", mock.Anything, "alice").Return(3, nil).Once()
	f.friends.On("CountIncoming", mock.Anything, "alice").Return(2, nil).Once()
	f.activity.On("CountChats", mock.Anything, "alice").Return(7, nil).Once()
	f.activity.On("CountCalls", mock.Anything, "alice").Return(0, errors.New("chat backend down")).Once()

	rec := f.do(http.MethodGet, "/api/users/profile/stats", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"friendsCount":3,"pendingRequests":2,"totalChats":7,"totalCalls":0}`, rec.Body.String())
}

func TestGetProfileStatsStoreUnavailable(t *testing.T) {
	f := newUserFixture(t)
	f.friends.On("CountFriends", mock.Anything, "alice").Return(0, errors.New("db down")).Once()

	rec := f.do(http.MethodGet, "/api/users/profile/stats", "", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateProfilePictureRejectsForeignLocalPaths(t *testing.T) {
	for _, pic := range []string{
		"/uploads/avatars/../victim.txt",
		"/uploads/avatars/alice/../../victim.txt",
		"/uploads/avatars/bob/x.png",
		"/uploads/avatars/alice/nested/x.png",
		"/etc/passwd",
	} {
		t.Run(pic, func(t *testing.T) {
			f := newUserFixture(t)

			rec := f.do(http.MethodPost, "/api/users/profile/picture", "application/json", strings.NewReader(`{"profilePic":"`+pic+`"}`))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			f.users.AssertNotCalled(t, "SetProfilePic", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDeleteProfilePictureStaysInsideAvatarDir(t *testing.T) {
	f := newUserFixture(t)

	outside := filepath.Join(filepath.Dir(f.handler.avatarDir), "victim.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	stored := "/uploads/avatars/../" + filepath.Base(outside)
	f.users.On("GetByID", mock.Anything, "alice").Return(&models.User{ID: "alice", ProfilePic: stored}, nil).Once()
	f.users.On("SetProfilePic", mock.Anything, "alice", "").Return(&models.User{ID: "alice"}, nil).Once()

	rec := f.do(http.MethodDelete, "/api/users/profile/picture", "", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(outside)
	require.NoError(t, err)
	f.users.AssertExpectations(t)
}

func TestDeleteProfilePictureKeepsOtherUsersFiles(t *testing.T) {
	f := newUserFixture(t)

	bobFile := filepath.Join(f.handler.avatarDir, "bob", "avatar.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(bobFile), 0o755))
	require.NoError(t, os.WriteFile(bobFile, []byte("bob"), 0o644))

	f.users.On("GetByID", mock.Anything, "alice").Return(&models.User{ID: "alice", ProfilePic: "/uploads/avatars/bob/avatar.png"}, nil).Once()
	f.users.On("SetProfilePic", mock.Anything, "alice", "").Return(&models.User{ID: "alice"}, nil).Once()

	rec := f.do(http.MethodDelete, "/api/users/profile/picture", "", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(bobFile)
	require.NoError(t, err)
}
