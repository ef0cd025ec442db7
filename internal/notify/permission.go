package notify

import (
	"context"
	"fmt"
	"sync"
)

type State string

const (
	Granted      State = "granted"
	Denied       State = "denied"
	Undetermined State = "undetermined"
)

func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case Granted, Denied, Undetermined:
		return st, nil
	}
	return "", fmt.Errorf("unknown permission state %q", s)
}

// RequestFunc asks for notification permission and returns the answer.
type RequestFunc func(ctx context.Context) (State, error)

// Permission is the notification capability. An undetermined state is
// requested at most once; whatever the request resolves to sticks.
type Permission struct {
	mu        sync.Mutex
	state     State
	requested bool
	request   RequestFunc
}

func NewPermission(initial State, request RequestFunc) *Permission {
	if initial == "" {
		initial = Undetermined
	}
	return &Permission{state: initial, request: request}
}

// Grant answers every request with granted or denied.
func Grant(ok bool) RequestFunc {
	return func(context.Context) (State, error) {
		if ok {
			return Granted, nil
		}
		return Denied, nil
	}
}

func (p *Permission) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Resolve returns the current state, requesting it first if it is still
// undetermined and has never been asked. Concurrent callers wait on the one
// request.
func (p *Permission) Resolve(ctx context.Context) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Undetermined || p.requested || p.request == nil {
		return p.state, nil
	}
	p.requested = true
	st, err := p.request(ctx)
	if err != nil {
		return p.state, err
	}
	p.state = st
	return st, nil
}
