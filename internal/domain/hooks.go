// Package domain holds pieces shared by the billing core services.
package domain

import (
	"context"
)

// HookEvent names a lifecycle point of a domain service.
type HookEvent string

const (
	AfterBillCreated HookEvent = "after_bill_created"
	AfterPaid        HookEvent = "after_paid"
	AfterUnpaid      HookEvent = "after_unpaid"
)

// Hook runs at a lifecycle point. Hooks run inside the transaction of the
// operation, so an error rolls the operation back.
type Hook[T any] func(ctx context.Context, subject T) error

// HookRegistry stores hooks per event. Registration is expected at wiring time,
// before the service handles requests.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{hooks: make(map[HookEvent][]Hook[T])}
}

// On registers hook for event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes the hooks of event in registration order, stopping at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, subject T) error {
	for _, hook := range r.hooks[event] {
		if err := hook(ctx, subject); err != nil {
			return err
		}
	}
	return nil
}
