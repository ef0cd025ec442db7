package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const ServiceName = "calendar.v1.CalendarService"

const (
	MethodRegister      = "Register"
	MethodLogin         = "Login"
	MethodRefresh       = "Refresh"
	MethodCreateEvent   = "CreateEvent"
	MethodGetEvent      = "GetEvent"
	MethodListEvents    = "ListEvents"
	MethodUpdateEvent   = "UpdateEvent"
	MethodDeleteEvent   = "DeleteEvent"
	MethodReorderEvents = "ReorderEvents"
	MethodShareEvent    = "ShareEvent"
	MethodListReminders = "ListReminders"
)

// FullMethod is the gRPC path of a method, as seen by interceptors.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Codec marshals messages as JSON. Clients select it with the "json"
// content subtype.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(Codec{})
}

type CalendarServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)
	CreateEvent(context.Context, *CreateEventRequest) (*EventResponse, error)
	GetEvent(context.Context, *GetEventRequest) (*EventResponse, error)
	ListEvents(context.Context, *ListEventsRequest) (*ListEventsResponse, error)
	UpdateEvent(context.Context, *UpdateEventRequest) (*EventResponse, error)
	DeleteEvent(context.Context, *DeleteEventRequest) (*DeleteEventResponse, error)
	ReorderEvents(context.Context, *ReorderEventsRequest) (*ReorderEventsResponse, error)
	ShareEvent(context.Context, *ShareEventRequest) (*EventResponse, error)
	ListReminders(context.Context, *ListRemindersRequest) (*ListRemindersResponse, error)
}

func unary[Req, Resp any](name string, call func(CalendarServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CalendarServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, CalendarServer.Register),
		unary(MethodLogin, CalendarServer.Login),
		unary(MethodRefresh, CalendarServer.Refresh),
		unary(MethodCreateEvent, CalendarServer.CreateEvent),
		unary(MethodGetEvent, CalendarServer.GetEvent),
		unary(MethodListEvents, CalendarServer.ListEvents),
		unary(MethodUpdateEvent, CalendarServer.UpdateEvent),
		unary(MethodDeleteEvent, CalendarServer.DeleteEvent),
		unary(MethodReorderEvents, CalendarServer.ReorderEvents),
		unary(MethodShareEvent, CalendarServer.ShareEvent),
		unary(MethodListReminders, CalendarServer.ListReminders),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calendar/v1/calendar.json",
}

func RegisterCalendarServer(s grpc.ServiceRegistrar, srv CalendarServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Method looks up a method descriptor by short name.
func Method(name string) (grpc.MethodDesc, bool) {
	for _, m := range ServiceDesc.Methods {
		if m.MethodName == name {
			return m, true
		}
	}
	return grpc.MethodDesc{}, false
}
