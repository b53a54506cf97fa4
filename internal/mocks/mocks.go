package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-service/internal/models"
	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
)

// MockFriendRepository mocks FriendRepository behavior for handlers and services.
type MockFriendRepository struct {
	mock.Mock
}

func (m *MockFriendRepository) CreateRequest(ctx context.Context, senderID, recipientID string) (*models.FriendRequest, error) {
	args := m.Called(ctx, senderID, recipientID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) GetRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) GetRequestBetween(ctx context.Context, userID, otherID string) (*models.FriendRequest, error) {
	args := m.Called(ctx, userID, otherID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) AcceptRequest(ctx context.Context, requestID, recipientID string) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID, recipientID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) ListIncoming(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error) {
	args := m.Called(ctx, userID)
	return requestsWithUser(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error) {
	args := m.Called(ctx, userID)
	return requestsWithUser(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) ListAcceptedSent(ctx context.Context, userID string) ([]models.FriendRequestWithUser, error) {
	args := m.Called(ctx, userID)
	return requestsWithUser(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	args := m.Called(ctx, userID)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) CountFriends(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockFriendRepository) CountIncoming(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockFriendRepository) ListRecommended(ctx context.Context, userID string) ([]models.User, error) {
	args := m.Called(ctx, userID)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

// MockUserRepository mocks the identity store.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, id, update)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) SetProfilePic(ctx context.Context, id, url string) (*models.User, error) {
	args := m.Called(ctx, id, url)
	return user(args.Get(0)), args.Error(1)
}

// MockActivityCounter mocks the chat backend's activity totals.
type MockActivityCounter struct {
	mock.Mock
}

func (m *MockActivityCounter) CountChats(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockActivityCounter) CountCalls(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// MockPublisher mocks RabbitMQ publisher behavior for telemetry.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func friendRequest(v any) *models.FriendRequest {
	if v == nil {
		return nil
	}
	return v.(*models.FriendRequest)
}

func requestsWithUser(v any) []models.FriendRequestWithUser {
	if v == nil {
		return nil
	}
	return v.([]models.FriendRequestWithUser)
}

func users(v any) []models.User {
	if v == nil {
		return nil
	}
	return v.([]models.User)
}

func user(v any) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}

// Compile-time assertions
var (
	_ repositories.FriendRepository = (*MockFriendRepository)(nil)
	_ repositories.UserRepository   = (*MockUserRepository)(nil)
	_ rabbitmq.Publisher            = (*MockPublisher)(nil)
)
