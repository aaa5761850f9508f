package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eiannone/keyboard"

	"github.com/tau-robotics/dynarm/pkg/dataset"
	"github.com/tau-robotics/dynarm/pkg/robot"
)

type RecordCommand struct {
	FPS         int           `long:"fps" default:"30" description:"Recording frame rate"`
	Episodes    int           `long:"episodes" default:"10" description:"Number of episodes to record"`
	EpisodeTime time.Duration `long:"episode-time" default:"60s" description:"Maximum length of one episode"`
	Warmup      time.Duration `long:"warmup" default:"5s" description:"Teleoperation warmup before the first episode"`
	DataDir     string        `long:"data-dir" description:"Dataset directory (default from config, else ./data)"`
}

func (c *RecordCommand) Execute(args []string) error {
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

	events := make(chan dataset.Event, 4)
	keys, err := keyboard.GetKeys(4)
	if err != nil {
		return fmt.Errorf("open keyboard: %w", err)
	}
	defer keyboard.Close()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-keys:
				if !ok {
					return
				}
				if ev.Err != nil {
					continue
				}
				switch {
				case ev.Key == keyboard.KeyEsc:
					events <- dataset.EventStop
				case ev.Key == keyboard.KeyArrowRight:
					events <- dataset.EventEndEpisode
				case ev.Rune == 'r' || ev.Key == keyboard.KeyBackspace || ev.Key == keyboard.KeyBackspace2:
					events <- dataset.EventRerecord
				case ev.Key == keyboard.KeyCtrlC:
					cancel()
					return
				}
			}
		}
	}()

	fmt.Printf("Recording %d episode(s) at %d fps to %s\n", c.Episodes, c.FPS, dir)
	fmt.Println("Keys: → end episode, r rerecord, esc stop")
	fmt.Println()

	saved, err := dataset.Record(ctx, r, store, dataset.RecordOptions{
		FPS:         c.FPS,
		Warmup:      c.Warmup,
		EpisodeTime: c.EpisodeTime,
		Episodes:    c.Episodes,
		Events:      events,
		Log: func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		},
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("record: %w", err)
	}

	fmt.Printf("\nSaved %d episode(s).\n", saved)
	return nil
}
