// Command controller runs the event-scheduling and smart-restart control
// plane for a managed game-server process: it tails the server's console
// log, tracks players and track transitions, sweeps the event schedule,
// and orchestrates graceful restarts when an event comes due.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/raceserver/controller/internal/clock"
	"github.com/raceserver/controller/internal/config"
	"github.com/raceserver/controller/internal/configfile"
	"github.com/raceserver/controller/internal/logpipe"
	"github.com/raceserver/controller/internal/players"
	"github.com/raceserver/controller/internal/restart"
	"github.com/raceserver/controller/internal/schedule"
	"github.com/raceserver/controller/internal/scheduler"
	"github.com/raceserver/controller/internal/supervisor"
	"github.com/raceserver/controller/internal/trackstate"
	"github.com/raceserver/controller/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to the XDG config path)")
	workingDir := flag.String("working-dir", "", "Override the managed server's working directory")
	serverCommand := flag.String("server-command", "", "Executable used to launch the managed server")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *workingDir != "" {
		cfg.Server.WorkingDir = *workingDir
	}

	clk := clock.Real{}

	store := schedule.NewStore(cfg.Server.WorkingDir, clk)
	cfgFilePath := cfg.Server.ConfigFilePath
	if cfgFilePath == "" {
		cfgFilePath = filepath.Join(cfg.Server.WorkingDir, "server.cfg")
	}
	cfgEditor := configfile.NewEditor(cfgFilePath)

	bus := logpipe.NewBus()
	tailer := logpipe.NewTailer(bus, clk)
	tailer.PollInterval = cfg.LogPipe.PollInterval
	tailer.WatchDebounce = cfg.LogPipe.WatchDebounce

	playerTracker := players.New(clk)
	playerTracker.Attach(bus)

	trackTracker := trackstate.New(clk)
	trackTracker.Attach(bus)

	args := strings.Fields(*serverCommand)
	var command string
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	proc := supervisor.NewProcess(command, args, cfg.Server.WorkingDir)

	sender := webhook.NewSender(cfg.Webhook.URL, cfg.Webhook.Timeout, cfg.Webhook.RetryCount)

	restartMachine := &restart.Machine{
		Clock:                clk,
		Supervisor:           proc,
		ConfigFile:           cfgEditor,
		Players:              playerTracker,
		ChatCommand:          cfg.Restart.ChatCommand,
		WarningMinutes:       cfg.Restart.WarningMinutes,
		PendingCheckInterval: cfg.Restart.PendingCheckInterval,
		PendingTimeout:       cfg.Restart.PendingTimeout,
		StabilizeDelay:       cfg.Restart.StabilizeDelay,
		CompletedDelay:       cfg.Restart.CompletedDelay,
	}
	restartMachine.Attach(trackTracker)

	sched := scheduler.New(store, restartMachine, sender, clk)
	sched.SweepInterval = cfg.Scheduler.SweepInterval
	sched.LeadWindow = cfg.Scheduler.LeadWindow
	sched.MissedWindow = cfg.Scheduler.MissedWindow

	logPath := resolveLogPath(cfgEditor, cfg.Server.FallbackLogPath)
	if logPath != "" {
		if err := tailer.Start(logPath); err != nil {
			log.Printf("[controller] starting log tailer: %v", err)
		}
	} else {
		log.Printf("[controller] no log path configured; player/track tracking disabled")
	}

	if err := sched.Start(); err != nil {
		log.Fatalf("starting scheduler: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[controller] shutting down")
	sched.Stop()
	tailer.Stop()
}

// resolveLogPath reads the "log=" key from the server's config file,
// falling back to the configured default if that fails.
func resolveLogPath(editor *configfile.Editor, fallback string) string {
	v, err := editor.ReadBasic()
	if err == nil && v.LogPath != nil && *v.LogPath != "" {
		return *v.LogPath
	}
	return fallback
}
