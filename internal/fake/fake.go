// Package fake provides in-memory test doubles for the process-supervisor
// and webhook ports, standing in for real I/O during tests.
package fake

import (
	"context"
	"sync"

	"github.com/raceserver/controller/internal/ports"
)

// Supervisor is a ports.ProcessSupervisor test double that records calls
// and lets tests script failures.
type Supervisor struct {
	mu sync.Mutex

	RestartErr error
	SendErr    error
	Status     ports.ProcessStatus

	RestartCalls int
	Console      []string
}

func NewSupervisor() *Supervisor {
	return &Supervisor{Status: ports.ProcessStatus{Running: true, PID: 1}}
}

func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RestartCalls++
	return s.RestartErr
}

func (s *Supervisor) SendConsoleCommand(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.Console = append(s.Console, text)
	return nil
}

func (s *Supervisor) CurrentStatus() ports.ProcessStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// ConsoleMessages returns a snapshot of every command sent so far.
func (s *Supervisor) ConsoleMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Console...)
}

// Webhook is a ports.WebhookSender test double that records every
// notification it was asked to deliver.
type Webhook struct {
	mu      sync.Mutex
	SendErr error
	Sent    []ports.ActivationNotice
}

func NewWebhook() *Webhook {
	return &Webhook{}
}

func (w *Webhook) SendActivation(ctx context.Context, notice ports.ActivationNotice) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Sent = append(w.Sent, notice)
	return w.SendErr
}

func (w *Webhook) Notices() []ports.ActivationNotice {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ports.ActivationNotice(nil), w.Sent...)
}
