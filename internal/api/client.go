package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls CalendarService using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec{}.Name())}, opts...)
	return c.cc.Invoke(ctx, FullMethod(method), in, out, opts...)
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, MethodRegister, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, MethodLogin, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, MethodRefresh, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, in *CreateEventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	out := new(EventResponse)
	if err := c.invoke(ctx, MethodCreateEvent, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEvent(ctx context.Context, in *GetEventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	out := new(EventResponse)
	if err := c.invoke(ctx, MethodGetEvent, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListEvents(ctx context.Context, in *ListEventsRequest, opts ...grpc.CallOption) (*ListEventsResponse, error) {
	out := new(ListEventsResponse)
	if err := c.invoke(ctx, MethodListEvents, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateEvent(ctx context.Context, in *UpdateEventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	out := new(EventResponse)
	if err := c.invoke(ctx, MethodUpdateEvent, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, in *DeleteEventRequest, opts ...grpc.CallOption) (*DeleteEventResponse, error) {
	out := new(DeleteEventResponse)
	if err := c.invoke(ctx, MethodDeleteEvent, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReorderEvents(ctx context.Context, in *ReorderEventsRequest, opts ...grpc.CallOption) (*ReorderEventsResponse, error) {
	out := new(ReorderEventsResponse)
	if err := c.invoke(ctx, MethodReorderEvents, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ShareEvent(ctx context.Context, in *ShareEventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	out := new(EventResponse)
	if err := c.invoke(ctx, MethodShareEvent, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListReminders(ctx context.Context, in *ListRemindersRequest, opts ...grpc.CallOption) (*ListRemindersResponse, error) {
	out := new(ListRemindersResponse)
	if err := c.invoke(ctx, MethodListReminders, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
