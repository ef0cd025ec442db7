package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"smart-calendar-api/internal/api"
	"smart-calendar-api/internal/auth"
	"smart-calendar-api/internal/model"
)

func (h *Handler) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "all fields required")
	}
	if len(req.Password) < 8 {
		return nil, status.Error(codes.InvalidArgument, "password too short")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         req.Name,
	}
	if err := h.accounts.CreateUser(ctx, u); err != nil {
		// unique violation = dup email, but don't reveal that
		return nil, status.Error(codes.AlreadyExists, "registration failed")
	}
	return h.issue(ctx, u)
}

func (h *Handler) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}

	u, err := h.accounts.UserByEmail(ctx, email)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return h.issue(ctx, u)
}

// Refresh trades a refresh token for a new pair. Presenting a token that
// was already rotated revokes every token of that user.
func (h *Handler) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.AuthResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token required")
	}

	rt, err := h.accounts.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(req.RefreshToken))
	if errors.Is(err, model.ErrNotFound) {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if err != nil {
		return nil, h.toStatus("refresh lookup", err)
	}
	if rt.Revoked {
		h.log.Warn("refresh token reuse", "user_id", rt.UserID)
		if err := h.accounts.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
			h.log.Error("revoke refresh tokens", "user_id", rt.UserID, "err", err)
		}
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, status.Error(codes.Unauthenticated, "refresh token expired")
	}

	u, err := h.accounts.UserByID(ctx, rt.UserID)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}

	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	newID := uuid.New().String()
	err = h.accounts.RotateRefreshToken(ctx, rt.ID, newID, u.ID, hash, time.Now().Add(auth.RefreshTTL))
	if errors.Is(err, model.ErrNotFound) {
		// rotated concurrently by another request
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if err != nil {
		return nil, h.toStatus("rotate refresh token", err)
	}

	tok, err := auth.MakeToken(u.ID, h.secret)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &api.AuthResponse{UserID: u.ID, Name: u.Name, Token: tok, RefreshToken: raw}, nil
}

func (h *Handler) issue(ctx context.Context, u *model.User) (*api.AuthResponse, error) {
	tok, err := auth.MakeToken(u.ID, h.secret)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	if _, err := h.accounts.CreateRefreshToken(ctx, u.ID, hash, time.Now().Add(auth.RefreshTTL)); err != nil {
		return nil, h.toStatus("store refresh token", err)
	}
	return &api.AuthResponse{UserID: u.ID, Name: u.Name, Token: tok, RefreshToken: raw}, nil
}
