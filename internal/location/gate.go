package location

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type Status string

const (
	StatusGranted      Status = "granted"
	StatusDenied       Status = "denied"
	StatusUndetermined Status = "undetermined"
)

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusGranted:
		return StatusGranted, nil
	case StatusDenied:
		return StatusDenied, nil
	case StatusUndetermined, "":
		return StatusUndetermined, nil
	}
	return "", fmt.Errorf("unknown permission status %q", s)
}

// Gate answers whether location may be read.
type Gate interface {
	CheckStatus(ctx context.Context) (Status, error)
	RequestAccess(ctx context.Context) (Status, error)
}

// StaticGate is a Gate with a fixed answer. An undetermined status resolves
// to onRequest the first time access is requested.
type StaticGate struct {
	mu        sync.Mutex
	status    Status
	onRequest Status
}

func NewStaticGate(status, onRequest Status) *StaticGate {
	if onRequest == StatusUndetermined || onRequest == "" {
		onRequest = StatusDenied
	}
	return &StaticGate{status: status, onRequest: onRequest}
}

func (g *StaticGate) CheckStatus(_ context.Context) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}

func (g *StaticGate) RequestAccess(_ context.Context) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status == StatusUndetermined {
		g.status = g.onRequest
	}
	return g.status, nil
}

// Authorize runs the check-then-request flow and returns ErrPermissionDenied
// unless access ends up granted.
func Authorize(ctx context.Context, gate Gate) error {
	status, err := gate.CheckStatus(ctx)
	if err != nil {
		return fmt.Errorf("check permission: %w", err)
	}
	if status != StatusGranted {
		status, err = gate.RequestAccess(ctx)
		if err != nil {
			return fmt.Errorf("request permission: %w", err)
		}
	}
	if status != StatusGranted {
		return ErrPermissionDenied
	}
	return nil
}
