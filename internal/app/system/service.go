// Package system provides the lifecycle manager shared by every
// background component (scheduler jobs, notification drain, HTTP
// server) registered by internal/app.
package system

import "context"

// Service represents a lifecycle-managed component. Every background
// module implements this interface so the manager can start and stop
// it deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService is a convenient Service implementation for modules that
// do not require background processing.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string { return n.ServiceName }

func (NoopService) Start(context.Context) error { return nil }

func (NoopService) Stop(context.Context) error { return nil }
