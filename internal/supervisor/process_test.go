package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForFileContains(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && string(data) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	data, _ := os.ReadFile(path)
	t.Fatalf("file %s = %q, want %q", path, data, want)
}

func TestRestartLaunchesProcessAndTracksStatus(t *testing.T) {
	p := NewProcess("sleep", []string{"5"}, t.TempDir())

	if err := p.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	defer p.stopLocked()

	status := p.CurrentStatus()
	if !status.Running || status.PID <= 0 {
		t.Fatalf("CurrentStatus() = %+v, want Running=true and a positive PID", status)
	}
}

func TestRestartReplacesThePreviousProcess(t *testing.T) {
	p := NewProcess("sleep", []string{"5"}, t.TempDir())

	if err := p.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := p.CurrentStatus().PID

	if err := p.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.stopLocked()
	second := p.CurrentStatus().PID

	if first == second {
		t.Fatalf("expected a new PID after the second Restart(), both were %d", first)
	}
}

func TestSendConsoleCommandWritesLineToChildStdin(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	script := "while read -r line; do printf '%s' \"$line\" > " + outPath + "; done"

	p := NewProcess("sh", []string{"-c", script}, dir)
	if err := p.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer p.stopLocked()

	if err := p.SendConsoleCommand(context.Background(), "hello"); err != nil {
		t.Fatalf("SendConsoleCommand() error = %v", err)
	}

	waitForFileContains(t, outPath, "hello")
}

func TestSendConsoleCommandBeforeRestartFails(t *testing.T) {
	p := NewProcess("sleep", []string{"5"}, t.TempDir())
	if err := p.SendConsoleCommand(context.Background(), "hi"); err == nil {
		t.Fatal("SendConsoleCommand() before Restart() error = nil, want an error")
	}
}
