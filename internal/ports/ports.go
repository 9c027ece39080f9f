// Package ports defines the capability interfaces the scheduling and
// restart logic calls into but does not implement: the process supervisor
// and the outbound webhook sender. Real implementations live in
// internal/supervisor and internal/webhook; fakes for tests live in
// internal/fake.
package ports

import (
	"context"
	"time"
)

// ProcessStatus is the supervisor's report of the managed process's state.
type ProcessStatus struct {
	Running bool
	PID     int
}

// ProcessSupervisor is the subset of process lifecycle control the
// restart machine needs: restarting the server and sending it console
// commands. Start/Stop and the rest of process bookkeeping belong to
// peripheral controllers.
type ProcessSupervisor interface {
	// Restart stops and relaunches the managed process, returning once it
	// has been (re)started or an error if it could not be.
	Restart(ctx context.Context) error

	// SendConsoleCommand writes text to the managed process's console/stdin,
	// used by the Smart Restart Machine to broadcast chat messages.
	SendConsoleCommand(ctx context.Context, text string) error

	// CurrentStatus reports the supervisor's last-known process state.
	CurrentStatus() ProcessStatus
}

// ActivationNotice is the payload sent to the webhook port on event
// activation.
type ActivationNotice struct {
	EventID   int
	EventName string
	Timestamp time.Time
}

// WebhookSender delivers fire-and-forget outbound notifications. Failure
// does not abort activation; retries, if any, are the port's concern.
type WebhookSender interface {
	SendActivation(ctx context.Context, notice ActivationNotice) error
}
