package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tau-robotics/dynarm/pkg/dataset"
	"github.com/tau-robotics/dynarm/pkg/robot"
)

type ReplayCommand struct {
	Episode int    `long:"episode" default:"0" description:"Episode index to replay"`
	FPS     int    `long:"fps" description:"Playback rate (default: the episode's recorded rate)"`
	DataDir string `long:"data-dir" description:"Dataset directory (default from config, else ./data)"`
}

func (c *ReplayCommand) Execute(args []string) error {
	cfg := loadCheckedConfig()

	dir := c.DataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	if dir == "" {
		dir = "data"
	}

	store, err := dataset.Open(dir)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	r, err := robot.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("create robot: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := r.Connect(ctx); err != nil {
		return fmt.Errorf("connect robot: %w", err)
	}
	defer r.Disconnect()

	fmt.Printf("Replaying episode %d\n", c.Episode)

	if err := dataset.Replay(ctx, r, store, c.Episode, c.FPS); err != nil {
		if ctx.Err() != nil {
			fmt.Println("Replay interrupted.")
			return nil
		}
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Println("Replay done.")
	return nil
}
