package main

import (
	"log"

	"github.com/ckoons/argo-sub001/bus"
	"github.com/ckoons/argo-sub001/internal/obslog"
	"github.com/ckoons/argo-sub001/orchestrator"
	"github.com/ckoons/argo-sub001/runtimeconfig"
	"github.com/ckoons/argo-sub001/shutdown"
)

func main() {
	cfg := runtimeconfig.New()
	logger := obslog.New("argo", cfg.LogLevel, cfg.LogFormat)

	transport := bus.NewMockBus()

	tracker := shutdown.Get()
	stop := tracker.InstallSignalHandlers()
	defer stop()

	setup := func(o *orchestrator.Orchestrator, userdata any) error {
		if err := o.AddCI("builder-1", "builder", "claude-3"); err != nil {
			return err
		}
		if err := o.StartCI("builder-1"); err != nil {
			return err
		}
		return o.CreateTask("builder-1", "bootstrap the session")
	}

	if err := orchestrator.RunSession(cfg, "argo-session", "main", transport, logger, setup, nil); err != nil {
		log.Fatal(err)
	}
}
