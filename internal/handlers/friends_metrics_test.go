package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/metrics"
	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

func setupFriendsMetricsRouter(handler *FriendHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/users", withActor("alice"))
	api.GET("", handler.Recommended)
	api.POST("/friend-request/:id", handler.SendRequest)
	api.PUT("/friend-request/:id/accept", handler.AcceptRequest)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func fetchMetrics(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := doRequest(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func metricValue(metricsBody, series string) (float64, bool) {
	for _, line := range strings.Split(metricsBody, "\n") {
		if strings.HasPrefix(line, series+" ") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return 0, false
			}
			value, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return 0, false
			}
			return value, true
		}
	}
	return 0, false
}

func assertMetricIncrement(t *testing.T, router *gin.Engine, series string, call func()) {
	t.Helper()
	before, _ := metricValue(fetchMetrics(t, router), series)
	call()
	after, found := metricValue(fetchMetrics(t, router), series)
	require.True(t, found, series)
	require.Greater(t, after, before)
}

func TestSendRequestMetricsRefused(t *testing.T) {
	metrics.Register(prometheus.DefaultRegisterer)
	friends := new(mocks.MockFriendRepository)
	handler := NewFriendHandler(newFriendService(friends, new(mocks.MockUserRepository)), nil)
	router := setupFriendsMetricsRouter(handler)

	assertMetricIncrement(t, router, `social_friend_operations_total{operation="send_request",outcome="self_request"}`, func() {
		rec := doRequest(router, http.MethodPost, "/api/users/friend-request/alice")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSendRequestMetricsSuccess(t *testing.T) {
	metrics.Register(prometheus.DefaultRegisterer)
	friends := new(mocks.MockFriendRepository)
	users := new(mocks.MockUserRepository)
	handler := NewFriendHandler(newFriendService(friends, users), nil)
	router := setupFriendsMetricsRouter(handler)

	users.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	friends.On("CreateRequest", mock.Anything, "alice", "bob").
		Return(&models.FriendRequest{ID: "req-1", SenderID: "alice", RecipientID: "bob", Status: models.FriendRequestPending}, nil).Once()

	assertMetricIncrement(t, router, `social_friend_operations_total{operation="send_request",outcome="success"}`, func() {
		rec := doRequest(router, http.MethodPost, "/api/users/friend-request/bob")
		require.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestAcceptRequestMetricsNotFound(t *testing.T) {
	metrics.Register(prometheus.DefaultRegisterer)
	friends := new(mocks.MockFriendRepository)
	handler := NewFriendHandler(newFriendService(friends, new(mocks.MockUserRepository)), nil)
	router := setupFriendsMetricsRouter(handler)

	friends.On("AcceptRequest", mock.Anything, "missing", "alice").Return(nil, repositories.ErrNotFound).Once()
	friends.On("GetRequest", mock.Anything, "missing").Return(nil, repositories.ErrNotFound).Once()

	assertMetricIncrement(t, router, `social_friend_operations_total{operation="accept_request",outcome="not_found"}`, func() {
		rec := doRequest(router, http.MethodPut, "/api/users/friend-request/missing/accept")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecommendationSizeObserved(t *testing.T) {
	metrics.Register(prometheus.DefaultRegisterer)
	friends := new(mocks.MockFriendRepository)
	handler := NewFriendHandler(newFriendService(friends, new(mocks.MockUserRepository)), nil)
	router := setupFriendsMetricsRouter(handler)

	friends.On("ListRecommended", mock.Anything, "alice").Return([]models.User{{ID: "bob"}}, nil).Once()

	assertMetricIncrement(t, router, "social_friend_recommendations_size_count", func() {
		rec := doRequest(router, http.MethodGet, "/api/users")
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
