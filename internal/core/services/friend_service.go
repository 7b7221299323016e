package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	apperrors "owlet/pkg/errors"
)

var (
	ErrSelfFriendship  = errors.New("cannot befriend yourself")
	ErrAlreadyFriends  = errors.New("already friends")
	ErrRequestPending  = errors.New("a pending request already exists")
	ErrRequestIncoming = errors.New("the other user already sent you a request")
	ErrBlocked         = errors.New("request cannot be delivered")
	ErrBlockedByYou    = errors.New("you have blocked this user")
)

// Friend list filters.
const (
	FriendFilterAll     = "all"
	FriendFilterPending = "pending"
	FriendFilterBlocked = "blocked"
)

// Respond actions.
const (
	FriendActionAccept = "ACCEPT"
	FriendActionReject = "REJECT"
	FriendActionBlock  = "BLOCK"
	FriendActionRemove = "REMOVE"
)

// FriendService drives the undirected friendship state machine and
// enriches friend lists with live presence. One row per user pair;
// LastActionBy carries direction.
type FriendService struct {
	friends  ports.FriendRepository
	users    ports.UserRepository
	presence ports.PresenceQuerier
	logger   *zap.SugaredLogger
}

func NewFriendService(friends ports.FriendRepository, users ports.UserRepository, presence ports.PresenceQuerier, logger *zap.SugaredLogger) *FriendService {
	return &FriendService{
		friends:  friends,
		users:    users,
		presence: presence,
		logger:   logger,
	}
}

// SendRequest creates or revives a pending request toward the named
// user. Rejected and unfriended rows may be retried; blocked and
// already-pending rows may not.
func (s *FriendService) SendRequest(ctx context.Context, actor domain.UserID, targetUsername string) (*domain.Friendship, error) {
	target, err := s.users.GetByUsername(ctx, strings.ToLower(targetUsername))
	if err != nil {
		return nil, err
	}
	if target.ID == actor {
		return nil, ErrSelfFriendship
	}

	friendshipID := domain.FriendshipID(actor, target.ID)
	existing, err := s.friends.Get(ctx, friendshipID)
	if err != nil && !errors.Is(err, domain.ErrFriendshipNotFound) {
		return nil, err
	}

	now := time.Now()
	if existing == nil {
		userA, userB := actor, target.ID
		if userB < userA {
			userA, userB = userB, userA
		}
		friendship := &domain.Friendship{
			ID:           friendshipID,
			UserA:        userA,
			UserB:        userB,
			Status:       domain.FriendshipPending,
			LastActionBy: actor,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.friends.Insert(ctx, friendship); err != nil {
			return nil, err
		}
		return friendship, nil
	}

	switch existing.Status {
	case domain.FriendshipAccepted:
		return nil, ErrAlreadyFriends
	case domain.FriendshipPending:
		if existing.LastActionBy == actor {
			return nil, ErrRequestPending
		}
		return nil, ErrRequestIncoming
	case domain.FriendshipBlocked:
		if existing.LastActionBy == actor {
			return nil, ErrBlockedByYou
		}
		return nil, ErrBlocked
	case domain.FriendshipRejected, domain.FriendshipUnfriended:
		if err := s.friends.UpdateStatus(ctx, friendshipID, domain.FriendshipPending, actor, now); err != nil {
			return nil, err
		}
		existing.Status = domain.FriendshipPending
		existing.LastActionBy = actor
		existing.UpdatedAt = now
		return existing, nil
	default:
		return nil, fmt.Errorf("friendship %s in unknown state %d", friendshipID, existing.Status)
	}
}

// Respond applies an action to an existing row. Accept requires a
// pending request from the counterpart; block is always available to
// either side.
func (s *FriendService) Respond(ctx context.Context, actor domain.UserID, friendshipID, action string) (domain.FriendshipStatus, error) {
	existing, err := s.friends.Get(ctx, friendshipID)
	if err != nil {
		return 0, err
	}
	if existing.UserA != actor && existing.UserB != actor {
		return 0, ErrPermissionDenied
	}

	var next domain.FriendshipStatus
	switch action {
	case FriendActionAccept:
		if existing.Status != domain.FriendshipPending {
			return 0, apperrors.NewInvalidInputError("only pending requests can be accepted")
		}
		if existing.LastActionBy == actor {
			return 0, apperrors.NewInvalidInputError("cannot accept your own request")
		}
		next = domain.FriendshipAccepted
	case FriendActionReject:
		if existing.Status != domain.FriendshipPending {
			return 0, apperrors.NewInvalidInputError("only pending requests can be rejected")
		}
		next = domain.FriendshipRejected
	case FriendActionBlock:
		next = domain.FriendshipBlocked
	case FriendActionRemove:
		if existing.Status != domain.FriendshipAccepted {
			return 0, apperrors.NewInvalidInputError("only accepted friends can be removed")
		}
		next = domain.FriendshipUnfriended
	default:
		return 0, apperrors.NewInvalidInputError(fmt.Sprintf("unknown action %q", action))
	}

	if err := s.friends.UpdateStatus(ctx, friendshipID, next, actor, time.Now()); err != nil {
		return 0, err
	}
	return next, nil
}

// List returns the caller's relations under a filter, each enriched
// with live presence. Invisible users read as offline without ever
// being queried.
func (s *FriendService) List(ctx context.Context, actor domain.UserID, filter string) ([]*domain.FriendView, error) {
	views, err := s.friends.List(ctx, actor)
	if err != nil {
		return nil, err
	}

	filtered := views[:0]
	for _, view := range views {
		switch filter {
		case FriendFilterPending:
			if view.Status == domain.FriendshipPending && view.LastActionBy != actor {
				filtered = append(filtered, view)
			}
		case FriendFilterBlocked:
			if view.Status == domain.FriendshipBlocked && view.LastActionBy == actor {
				filtered = append(filtered, view)
			}
		default:
			if view.Status == domain.FriendshipAccepted {
				filtered = append(filtered, view)
			}
		}
	}

	candidates := make([]domain.UserID, 0, len(filtered))
	for _, view := range filtered {
		if view.OtherUser.Status != domain.StatusInvisible {
			candidates = append(candidates, view.OtherUser.ID)
		}
	}
	online := map[domain.UserID]bool{}
	if len(candidates) > 0 {
		online = s.presence.QueryPresence(ctx, candidates)
	}
	for _, view := range filtered {
		view.Online = view.OtherUser.Status != domain.StatusInvisible && online[view.OtherUser.ID]
	}
	return filtered, nil
}

// CheckStatus is the polling endpoint body: live presence for the
// given ids, no relational reads at all.
func (s *FriendService) CheckStatus(ctx context.Context, userIDs []domain.UserID) map[domain.UserID]bool {
	return s.presence.QueryPresence(ctx, userIDs)
}

// MarkSeen acknowledges every state change made by counterparts.
func (s *FriendService) MarkSeen(ctx context.Context, actor domain.UserID) error {
	return s.friends.MarkSeen(ctx, actor)
}
