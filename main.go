/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima/engine"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/testbed"
)

func main() {
	configPath := flag.String("config", "anima.toml", "path to the engine TOML configuration")
	flag.Parse()

	cfg, err := engine.LoadConfig(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogInfo("no config at %s, using defaults", *configPath)
		cfg, err = engine.DefaultConfig(), nil
	}
	if err != nil {
		core.LogFatal("config: %s", err)
	}

	tb, err := testbed.NewTestGame(cfg)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		core.LogError("initialize: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop picks the quit event up on its next dispatch
	go func() {
		<-sigCh
		_ = core.EventPost(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		core.LogError("%s", runErr)
		os.Exit(1)
	}
}
