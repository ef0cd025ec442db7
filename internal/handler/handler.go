package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"smart-calendar-api/internal/api"
	"smart-calendar-api/internal/calendar"
	"smart-calendar-api/internal/middleware"
	"smart-calendar-api/internal/model"
)

// Accounts is the user and refresh-token persistence.
type Accounts interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID, newID, userID, newHash string, newExpiry time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// Calendars resolves the controller for an owner.
type Calendars interface {
	For(ctx context.Context, ownerID string) (*calendar.Controller, error)
}

type Handler struct {
	accounts Accounts
	cals     Calendars
	secret   string
	log      *slog.Logger
}

var _ api.CalendarServer = (*Handler)(nil)

func New(accounts Accounts, cals Calendars, secret string, logger *slog.Logger) *Handler {
	return &Handler{accounts: accounts, cals: cals, secret: secret, log: logger.With("component", "handler")}
}

func (h *Handler) controller(ctx context.Context) (*calendar.Controller, error) {
	owner, ok := middleware.OwnerID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no owner")
	}
	c, err := h.cals.For(ctx, owner)
	if err != nil {
		h.log.Error("load calendar", "owner", owner, "err", err)
		return nil, status.Error(codes.Unavailable, "calendar unavailable")
	}
	return c, nil
}

// toStatus maps the error taxonomy onto gRPC codes.
func (h *Handler) toStatus(op string, err error) error {
	switch {
	case model.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "event not found")
	default:
		h.log.Error(op, "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}
