package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"smart-calendar-api/internal/api"
	"smart-calendar-api/internal/model"
)

func (h *Handler) CreateEvent(ctx context.Context, req *api.CreateEventRequest) (*api.EventResponse, error) {
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := c.Create(ctx, req.Event)
	if err != nil {
		return nil, h.toStatus("create event", err)
	}
	return &api.EventResponse{Event: e}, nil
}

func (h *Handler) GetEvent(ctx context.Context, req *api.GetEventRequest) (*api.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := c.Get(req.ID)
	if err != nil {
		return nil, h.toStatus("get event", err)
	}
	return &api.EventResponse{Event: e}, nil
}

func (h *Handler) ListEvents(ctx context.Context, req *api.ListEventsRequest) (*api.ListEventsResponse, error) {
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	var events []model.Event
	if req.Date != nil {
		events = c.Day(*req.Date)
	} else {
		events = c.Events()
	}
	if events == nil {
		events = []model.Event{}
	}
	return &api.ListEventsResponse{Events: events}, nil
}

func (h *Handler) UpdateEvent(ctx context.Context, req *api.UpdateEventRequest) (*api.EventResponse, error) {
	if req.Event.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := c.Update(ctx, req.Event)
	if err != nil {
		return nil, h.toStatus("update event", err)
	}
	return &api.EventResponse{Event: e}, nil
}

func (h *Handler) DeleteEvent(ctx context.Context, req *api.DeleteEventRequest) (*api.DeleteEventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Delete(ctx, req.ID); err != nil {
		return nil, h.toStatus("delete event", err)
	}
	return &api.DeleteEventResponse{}, nil
}

// ReorderEvents succeeds whenever the ids are valid; failed order writes
// come back as warnings since the new order is already in effect.
func (h *Handler) ReorderEvents(ctx context.Context, req *api.ReorderEventsRequest) (*api.ReorderEventsResponse, error) {
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}

	resp := &api.ReorderEventsResponse{}
	if err := c.Reorder(ctx, req.Date, req.IDs); err != nil {
		if model.IsValidation(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		resp.Warnings = warnings(err)
	}
	resp.Events = c.Day(req.Date)
	if resp.Events == nil {
		resp.Events = []model.Event{}
	}
	return resp, nil
}

func warnings(err error) []string {
	var out []string
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func (h *Handler) ShareEvent(ctx context.Context, req *api.ShareEventRequest) (*api.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	e, err := c.Share(ctx, req.ID, req.Email)
	if err != nil {
		return nil, h.toStatus("share event", err)
	}
	return &api.EventResponse{Event: e}, nil
}

func (h *Handler) ListReminders(ctx context.Context, _ *api.ListRemindersRequest) (*api.ListRemindersResponse, error) {
	c, err := h.controller(ctx)
	if err != nil {
		return nil, err
	}
	return &api.ListRemindersResponse{Reminders: c.Reminders()}, nil
}
