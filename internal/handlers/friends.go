package handlers

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/metrics"
	"social-service/internal/models"
	"social-service/internal/services"
	"social-service/internal/telemetry"
)

type FriendHandler struct {
	friends *services.FriendService
	audit   *telemetry.AuditEmitter
}

func NewFriendHandler(friends *services.FriendService, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{friends: friends, audit: audit}
}

// friendRequestsResponse is the notifications view: pending requests to the
// actor plus the actor's own requests that were accepted.
type friendRequestsResponse struct {
	IncomingReqs []models.FriendRequestWithUser `json:"incomingReqs"`
	AcceptedReqs []models.FriendRequestWithUser `json:"acceptedReqs"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	actor, ok := actorFromContext(c)
	if !ok {
		metrics.RecordFriendOperation(metrics.OpSendRequest, outcomeUnauthorized)
		unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	targetID := c.Param("id")
	req, err := h.friends.SendFriendRequest(ctx, actor, targetID)
	if err != nil {
		_, outcome := classify(err)
		h.emitAudit(ctx, auditLevel(err), "friend request to '"+targetID+"' failed: "+outcome, requestID, actor)
		metrics.RecordFriendOperation(metrics.OpSendRequest, outcome)
		writeError(c, err)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Friend request sent to '"+targetID+"'", requestID, actor)
	metrics.RecordFriendOperation(metrics.OpSendRequest, metrics.OutcomeSuccess)
	c.JSON(nethttp.StatusCreated, req)
}

func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	actor, ok := actorFromContext(c)
	if !ok {
		metrics.RecordFriendOperation(metrics.OpAcceptRequest, outcomeUnauthorized)
		unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	friendRequestID := c.Param("id")
	req, err := h.friends.AcceptFriendRequest(ctx, actor, friendRequestID)
	if err != nil {
		_, outcome := classify(err)
		h.emitAudit(ctx, auditLevel(err), "accept of friend request '"+friendRequestID+"' failed: "+outcome, requestID, actor)
		metrics.RecordFriendOperation(metrics.OpAcceptRequest, outcome)
		writeError(c, err)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Friend request '"+friendRequestID+"' accepted", requestID, actor)
	metrics.RecordFriendOperation(metrics.OpAcceptRequest, metrics.OutcomeSuccess)
	c.JSON(nethttp.StatusOK, req)
}

func (h *FriendHandler) ListIncoming(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	ctx := c.Request.Context()
	incoming, err := h.friends.GetFriendRequests(ctx, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	accepted, err := h.friends.GetAcceptedRequests(ctx, actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(nethttp.StatusOK, friendRequestsResponse{
		IncomingReqs: nonNil(incoming),
		AcceptedReqs: nonNil(accepted),
	})
}

func (h *FriendHandler) ListOutgoing(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	outgoing, err := h.friends.GetOutgoingFriendReqs(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, nonNil(outgoing))
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	friends, err := h.friends.GetMyFriends(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, nonNil(friends))
}

// FriendshipStatus reports whether the actor and :id are friends.
func (h *FriendHandler) FriendshipStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	areFriends, err := h.friends.AreFriends(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"areFriends": areFriends})
}

func (h *FriendHandler) Recommended(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	users, err := h.friends.GetRecommendedUsers(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.ObserveRecommendations(len(users))
	c.JSON(nethttp.StatusOK, nonNil(users))
}

// auditLevel reports refusals the caller caused at INFO and store failures at ERROR.
func auditLevel(err error) string {
	if errors.Is(err, services.ErrStoreUnavailable) {
		return telemetry.LevelError
	}
	return telemetry.LevelInfo
}

func (h *FriendHandler) emitAudit(ctx context.Context, level, text, requestID, userID string) {
	if h.audit == nil {
		return
	}
	h.audit.EmitAudit(ctx, level, text, requestID, userID)
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
