// Package gateway serves the calendar service to browsers as plain
// HTTP/JSON. Each POST /v1/<Method> runs through the same method
// descriptor and interceptors a native gRPC call would.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"smart-calendar-api/internal/api"
	"smart-calendar-api/internal/auth"
	"smart-calendar-api/internal/calendar"
	"smart-calendar-api/internal/ics"
	"smart-calendar-api/internal/middleware"
)

const maxBody = 1 << 20

// Calendars resolves an owner's controller for the iCalendar export.
type Calendars interface {
	For(ctx context.Context, ownerID string) (*calendar.Controller, error)
}

type Bridge struct {
	srv       api.CalendarServer
	intercept grpc.UnaryServerInterceptor
	cals      Calendars
	secret    string
	loc       *time.Location
	log       *slog.Logger
}

// New builds a bridge over srv. intercept is applied to every call and is
// normally the same chain the gRPC server uses.
func New(srv api.CalendarServer, intercept grpc.UnaryServerInterceptor, cals Calendars, secret string, loc *time.Location, logger *slog.Logger) *Bridge {
	return &Bridge{
		srv:       srv,
		intercept: intercept,
		cals:      cals,
		secret:    secret,
		loc:       loc,
		log:       logger.With("component", "gateway"),
	}
}

func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /v1/calendar.ics", b.exportICS)
	mux.HandleFunc("POST /v1/{method}", b.call)
	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type remoteAddr string

func (a remoteAddr) Network() string { return "tcp" }
func (a remoteAddr) String() string  { return string(a) }

func (b *Bridge) call(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("method")
	desc, ok := api.Method(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown method "+name)
		return
	}

	// forward credentials the way a gRPC client would send them
	md := metadata.MD{}
	if v := r.Header.Get("Authorization"); v != "" {
		md.Set("authorization", v)
	}
	ctx := metadata.NewIncomingContext(r.Context(), md)
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: remoteAddr(r.RemoteAddr)})

	body := http.MaxBytesReader(w, r.Body, maxBody)
	dec := func(v any) error {
		err := json.NewDecoder(body).Decode(v)
		if err == nil || errors.Is(err, io.EOF) {
			return nil
		}
		return status.Error(codes.InvalidArgument, "malformed request body")
	}

	resp, err := desc.Handler(b.srv, ctx, dec, b.intercept)
	if err != nil {
		st := status.Convert(err)
		b.log.Debug("call failed", "method", name, "code", st.Code().String(), "msg", st.Message())
		writeError(w, httpStatus(st.Code()), st.Message())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// exportICS serves the caller's events as text/calendar. Calendar clients
// that cannot send headers may pass the access token as ?token=.
func (b *Bridge) exportICS(w http.ResponseWriter, r *http.Request) {
	raw := middleware.BearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	claims, err := auth.ParseToken(raw, b.secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "bad token")
		return
	}

	c, err := b.cals.For(r.Context(), claims.OwnerID)
	if err != nil {
		b.log.Error("ics export", "owner", claims.OwnerID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "calendar unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if err := ics.Write(w, "Calendar", c.Events(), b.loc, b.log); err != nil {
		b.log.Warn("ics write", "err", err)
	}
}

var httpCodes = map[codes.Code]int{
	codes.OK:                 http.StatusOK,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.FailedPrecondition: http.StatusPreconditionFailed,
}

func httpStatus(c codes.Code) int {
	if s, ok := httpCodes[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
