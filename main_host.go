//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"nkern/app"
	"nkern/hal"
)

func main() {
	var (
		cfgPath  string
		headless bool
		logLevel string
		hcfg     hal.HeadlessConfig
	)
	flag.StringVar(&cfgPath, "config", "", "Path to a syscfg TOML file.")
	flag.BoolVar(&headless, "headless", false, "Run without a window.")
	flag.IntVar(&hcfg.Hz, "hz", 60, "Host poll rate in headless mode.")
	flag.Uint64Var(&hcfg.Ticks, "ticks", 0, "Stop after N host polls in headless mode (0 = run forever).")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level.")
	flag.Parse()

	cfg := app.DefaultConfig()
	if cfgPath != "" {
		var err error
		if cfg, err = app.LoadConfig(cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	lvl, err := cfg.LogLevel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var sys *app.System
	var bootErr error
	newApp := func(h hal.HAL) func() error {
		log := app.NewLogger(h.Logger(), lvl)
		sys, bootErr = app.New(h, cfg, log)
		if bootErr != nil {
			return func() error { return bootErr }
		}
		return sys.Start(ctx)
	}

	host := hal.HostConfig{TicksPerSec: int(cfg.Kernel.TicksPerSec)}
	if headless {
		hcfg.Host = host
		err = hal.RunHeadless(ctx, newApp, hcfg)
	} else {
		err = hal.RunWindow(newApp, host)
	}
	if sys != nil {
		if serr := sys.Stop(); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
