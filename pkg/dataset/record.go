package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tau-robotics/dynarm/pkg/robot"
)

// Stepper is the robot capability Record needs.
type Stepper interface {
	TeleopStep(ctx context.Context, record bool) (*robot.Observation, *robot.Action, error)
}

// ActionSender is the robot capability Replay needs.
type ActionSender interface {
	SendAction(ctx context.Context, action []float64) error
}

// Event is an operator command during recording.
type Event int

const (
	// EventStop aborts recording after the current episode.
	EventStop Event = iota
	// EventEndEpisode finishes the current episode early.
	EventEndEpisode
	// EventRerecord discards the current episode and records it again.
	EventRerecord
)

// RecordOptions configures a recording session.
type RecordOptions struct {
	FPS         int                              // default 30
	Warmup      time.Duration                    // teleop without recording before the first episode
	EpisodeTime time.Duration                    // max length of one episode
	Episodes    int                              // number of episodes to record
	Events      <-chan Event                     // operator commands, may be nil
	Log         func(format string, args ...any) // may be nil
}

// Record runs a recording session: a warmup phase of plain teleoperation,
// then fixed-rate episodes of TeleopStep with data capture. It returns the
// number of episodes saved.
func Record(ctx context.Context, r Stepper, store *Store, opts RecordOptions) (int, error) {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.EpisodeTime <= 0 {
		opts.EpisodeTime = time.Minute
	}
	logf := opts.Log
	if logf == nil {
		logf = func(string, ...any) {}
	}
	period := time.Second / time.Duration(opts.FPS)

	if opts.Warmup > 0 {
		logf("Warmup for %s", opts.Warmup)
		end := time.Now().Add(opts.Warmup)
		for time.Now().Before(end) {
			start := time.Now()
			if _, _, err := r.TeleopStep(ctx, false); err != nil {
				return 0, fmt.Errorf("warmup: %w", err)
			}
			busyWait(period - time.Since(start))
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
	}

	saved := 0
	for index := 0; index < opts.Episodes; index++ {
		logf("Recording episode %d/%d", index+1, opts.Episodes)

		id, rerecord, stop, err := recordEpisode(ctx, r, store, index, period, opts)
		if err != nil {
			return saved, err
		}
		if rerecord {
			logf("Re-recording episode %d", index+1)
			if err := store.DeleteEpisode(id); err != nil {
				return saved, err
			}
			index--
			continue
		}
		saved++
		if stop {
			break
		}
	}
	logf("Recorded %d episode(s)", saved)
	return saved, nil
}

// recordEpisode captures a single episode. It returns the episode ID and
// whether the operator asked to re-record it or to stop the session.
func recordEpisode(ctx context.Context, r Stepper, store *Store, index int, period time.Duration, opts RecordOptions) (id string, rerecord, stop bool, err error) {
	ep := &Episode{
		ID:        uuid.NewString(),
		Index:     index,
		FPS:       opts.FPS,
		CreatedAt: time.Now(),
	}

	episodeStart := time.Now()
	deadline := episodeStart.Add(opts.EpisodeTime)

	done := false
	for frameIndex := 0; ; frameIndex++ {
		if opts.EpisodeTime > 0 && !time.Now().Before(deadline) {
			break
		}
		select {
		case ev := <-eventsOrNil(opts.Events):
			switch ev {
			case EventStop:
				stop = true
			case EventEndEpisode:
				done = true
			case EventRerecord:
				rerecord = true
			}
		case <-ctx.Done():
			return ep.ID, false, false, ctx.Err()
		default:
		}
		if stop || rerecord || done {
			break
		}

		start := time.Now()
		obs, action, err := r.TeleopStep(ctx, true)
		if err != nil {
			return ep.ID, false, false, fmt.Errorf("episode %d: %w", index, err)
		}

		frame := Frame{
			Index:     frameIndex,
			Timestamp: time.Since(episodeStart).Seconds(),
			State:     obs.State,
			Action:    action.Goal,
		}
		if len(obs.Images) > 0 {
			frame.Images = make(map[string][]byte, len(obs.Images))
			for name, img := range obs.Images {
				frame.Images[name] = img.Data
			}
		}
		if err := store.AppendFrame(ep.ID, frame); err != nil {
			return ep.ID, false, false, err
		}
		ep.NumFrames = frameIndex + 1

		busyWait(period - time.Since(start))
	}

	if rerecord {
		return ep.ID, true, false, nil
	}
	if err := store.SaveEpisode(ep); err != nil {
		return ep.ID, false, false, err
	}
	return ep.ID, false, stop, nil
}

// eventsOrNil makes a nil events channel select-safe.
func eventsOrNil(ch <-chan Event) <-chan Event {
	if ch == nil {
		return nil // receiving from nil blocks, so the default fires
	}
	return ch
}

// Replay streams a recorded episode's actions back to the robot at the
// episode's frame rate. A positive fps overrides it.
func Replay(ctx context.Context, r ActionSender, store *Store, episodeIndex, fps int) error {
	ep, err := store.EpisodeByIndex(episodeIndex)
	if err != nil {
		return err
	}
	frames, err := store.Frames(ep.ID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("episode has no frames")
	}

	if fps <= 0 {
		fps = ep.FPS
	}
	if fps <= 0 {
		fps = 30
	}
	period := time.Second / time.Duration(fps)

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := r.SendAction(ctx, frame.Action); err != nil {
			return fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		busyWait(period - time.Since(start))
	}
	return nil
}
