package dataset

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEpisodeRoundTrip(t *testing.T) {
	s := newTestStore(t)

	ep := &Episode{
		ID:        "ep-1",
		Index:     0,
		FPS:       30,
		NumFrames: 2,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveEpisode(ep); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	frames := []Frame{
		{Index: 0, Timestamp: 0, State: []float64{1, 2}, Action: []float64{3, 4}},
		{Index: 1, Timestamp: 0.033, State: []float64{5, 6}, Action: []float64{7, 8},
			Images: map[string][]byte{"wrist": {0xFF, 0xD8}}},
	}
	for _, f := range frames {
		if err := s.AppendFrame(ep.ID, f); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}

	episodes, err := s.Episodes()
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(episodes) != 1 || episodes[0].ID != "ep-1" || episodes[0].FPS != 30 {
		t.Fatalf("Episodes = %+v", episodes)
	}

	got, err := s.Frames(ep.ID)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Errorf("frames out of order: %d, %d", got[0].Index, got[1].Index)
	}
	if got[1].State[0] != 5 || got[1].Action[1] != 8 {
		t.Errorf("frame 1 = %+v", got[1])
	}
	if string(got[1].Images["wrist"]) != string(frames[1].Images["wrist"]) {
		t.Errorf("image not preserved: %v", got[1].Images)
	}
}

func TestEpisodesSortedByIndex(t *testing.T) {
	s := newTestStore(t)

	for _, idx := range []int{2, 0, 1} {
		ep := &Episode{ID: string(rune('a' + idx)), Index: idx}
		if err := s.SaveEpisode(ep); err != nil {
			t.Fatal(err)
		}
	}

	episodes, err := s.Episodes()
	if err != nil {
		t.Fatal(err)
	}
	for i, ep := range episodes {
		if ep.Index != i {
			t.Errorf("episodes[%d].Index = %d", i, ep.Index)
		}
	}
}

func TestEpisodeByIndex(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveEpisode(&Episode{ID: "x", Index: 3}); err != nil {
		t.Fatal(err)
	}

	ep, err := s.EpisodeByIndex(3)
	if err != nil {
		t.Fatalf("EpisodeByIndex: %v", err)
	}
	if ep.ID != "x" {
		t.Errorf("ID = %q", ep.ID)
	}

	if _, err := s.EpisodeByIndex(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteEpisode(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveEpisode(&Episode{ID: "del", Index: 0}); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if err := s.AppendFrame("del", Frame{Index: i}); err != nil {
			t.Fatal(err)
		}
	}
	// A second episode must survive the delete.
	if err := s.SaveEpisode(&Episode{ID: "keep", Index: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendFrame("keep", Frame{Index: 0}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteEpisode("del"); err != nil {
		t.Fatalf("DeleteEpisode: %v", err)
	}

	episodes, err := s.Episodes()
	if err != nil {
		t.Fatal(err)
	}
	if len(episodes) != 1 || episodes[0].ID != "keep" {
		t.Errorf("episodes = %+v", episodes)
	}
	frames, err := s.Frames("del")
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Errorf("deleted episode still has %d frames", len(frames))
	}
	frames, err = s.Frames("keep")
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Errorf("kept episode has %d frames, want 1", len(frames))
	}
}
