package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"smart-calendar-api/internal/api"
	"smart-calendar-api/internal/auth"
)

const secret = "middleware-test-secret"

func info(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: api.FullMethod(method)}
}

func echoOwner(ctx context.Context, _ any) (any, error) {
	id, _ := OwnerID(ctx)
	return id, nil
}

func withAuth(header string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", header))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc ", "abc"},
		{"BEARER abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BearerToken(tt.in), tt.in)
	}
}

func TestAuthOpenMethods(t *testing.T) {
	ic := Auth(secret)
	for _, m := range []string{api.MethodRegister, api.MethodLogin, api.MethodRefresh} {
		out, err := ic(context.Background(), nil, info(m), echoOwner)
		require.NoError(t, err, m)
		assert.Equal(t, "", out)
	}
}

func TestAuthProtected(t *testing.T) {
	ic := Auth(secret)
	token, err := auth.MakeToken("owner-1", secret)
	require.NoError(t, err)

	out, err := ic(withAuth("Bearer "+token), nil, info(api.MethodListEvents), echoOwner)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", out)

	other, err := auth.MakeToken("owner-1", "some-other-secret")
	require.NoError(t, err)

	for name, ctx := range map[string]context.Context{
		"no metadata":  context.Background(),
		"no header":    metadata.NewIncomingContext(context.Background(), metadata.MD{}),
		"wrong scheme": withAuth("Token " + token),
		"wrong secret": withAuth("Bearer " + other),
	} {
		_, err := ic(ctx, nil, info(api.MethodListEvents), echoOwner)
		assert.Equal(t, codes.Unauthenticated, status.Code(err), name)
	}
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mk := func(tag string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
			trace = append(trace, tag)
			return next(ctx, req)
		}
	}
	_, err := Chain(mk("a"), mk("b"), mk("c"))(context.Background(), nil, info(api.MethodLogin),
		func(context.Context, any) (any, error) {
			trace = append(trace, "handler")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "handler"}, trace)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Close()
	ic := RateLimit(rl)

	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4000}
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: addr})

	for i := 0; i < 2; i++ {
		_, err := ic(ctx, nil, info(api.MethodLogin), echoOwner)
		require.NoError(t, err)
	}
	_, err := ic(ctx, nil, info(api.MethodLogin), echoOwner)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// other methods are not limited
	_, err = ic(ctx, nil, info(api.MethodListEvents), echoOwner)
	assert.NoError(t, err)

	// a different peer has its own bucket
	ctx2 := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 4000}})
	_, err = ic(ctx2, nil, info(api.MethodLogin), echoOwner)
	assert.NoError(t, err)
}

func TestSweepDropsIdlePeers(t *testing.T) {
	rl := &RateLimiter{clients: map[string]*client{}, r: 1, burst: 1, done: make(chan struct{})}
	rl.get("stale").Allow()
	rl.mu.Lock()
	rl.clients["stale"].seen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	go rl.sweep(5*time.Millisecond, time.Minute)
	defer rl.Close()

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		_, ok := rl.clients["stale"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestRateLimitSharesBucketAcrossPorts(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Close()
	ic := RateLimit(rl)

	allowed := 0
	for port := 40000; port < 40020; port++ {
		ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: port}})
		if _, err := ic(ctx, nil, info(api.MethodLogin), echoOwner); err == nil {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestPeerHost(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{"ipv4", &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5}, "10.0.0.1"},
		{"ipv6", &net.TCPAddr{IP: net.ParseIP("::1"), Port: 5}, "::1"},
		{"no port", &net.UnixAddr{Name: "bufconn", Net: "unix"}, "bufconn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: tt.addr})
			assert.Equal(t, tt.want, peerHost(ctx))
		})
	}
	assert.Equal(t, "unknown", peerHost(context.Background()))
}
