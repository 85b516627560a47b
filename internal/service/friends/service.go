package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/amity-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends   = errors.New("already friends")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrUserNotFound     = errors.New("user not found")
)

// Service provides friend management business logic.
type Service struct {
	store store.Store
}

// New creates a new friends service.
func New(st store.Store) *Service {
	return &Service{
		store: st,
	}
}

// SendRequest sends a friend request to the user with the given username.
// Re-sending to the same user replaces the earlier request.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUsername string) (*store.FriendRequest, error) {
	toUser, err := s.store.GetUserByUsername(ctx, toUsername)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if toUser.ID == fromUserID {
		return nil, ErrCannotFriendSelf
	}

	friends, err := s.store.AreFriends(ctx, fromUserID, toUser.ID)
	if err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	req, err := s.store.CreateFriendRequest(ctx, fromUserID, toUser.ID)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return req, nil
}

// Resolve accepts or rejects a pending request addressed to toUserID.
// Accepting creates the friendship record.
func (s *Service) Resolve(ctx context.Context, requestID, toUserID string, accept bool) (*store.FriendRequest, error) {
	req, err := s.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	if req.ToUserID != toUserID || req.Status != store.FriendRequestPending {
		return nil, ErrRequestNotFound
	}

	status := store.FriendRequestRejected
	if accept {
		status = store.FriendRequestAccepted
	}
	if err := s.store.UpdateFriendRequestStatus(ctx, requestID, status); err != nil {
		return nil, fmt.Errorf("update friend request: %w", err)
	}
	req.Status = status

	if accept {
		if err := s.store.CreateFriendship(ctx, req.FromUserID, req.ToUserID); err != nil {
			return nil, fmt.Errorf("create friendship: %w", err)
		}
	}
	return req, nil
}

// Friends lists the accepted friends of a user.
func (s *Service) Friends(ctx context.Context, userID string) ([]*store.User, error) {
	return s.store.ListFriends(ctx, userID)
}

// PendingRequests lists pending incoming requests for a user.
func (s *Service) PendingRequests(ctx context.Context, userID string) ([]*store.FriendRequest, error) {
	return s.store.ListPendingRequests(ctx, userID)
}
