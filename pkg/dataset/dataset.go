// Package dataset stores teleoperated demonstrations: episodes of
// synchronized joint states, actions and camera frames, recorded at a
// fixed rate for policy training and replay.
package dataset

import "time"

// Frame is one control step of an episode.
type Frame struct {
	Index     int               `msgpack:"index"`
	Timestamp float64           `msgpack:"timestamp"` // seconds since episode start
	State     []float64         `msgpack:"state"`     // follower joint positions
	Action    []float64         `msgpack:"action"`    // goal positions sent
	Images    map[string][]byte `msgpack:"images,omitempty"`
}

// Episode is the metadata record of one demonstration.
type Episode struct {
	ID        string    `msgpack:"id"`
	Index     int       `msgpack:"index"`
	FPS       int       `msgpack:"fps"`
	NumFrames int       `msgpack:"num_frames"`
	CreatedAt time.Time `msgpack:"created_at"`
}
