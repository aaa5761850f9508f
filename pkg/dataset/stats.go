package dataset

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// Stats holds per-joint statistics over a set of episodes, used to
// normalize states and actions for policy training.
type Stats struct {
	Mean []float64
	Std  []float64
	Min  []float64
	Max  []float64
}

// ComputeStats aggregates per-dimension statistics over the state and
// action vectors of every frame in the store.
func ComputeStats(s *Store) (state, action *Stats, err error) {
	episodes, err := s.Episodes()
	if err != nil {
		return nil, nil, err
	}

	var states, actions [][]float64
	for _, ep := range episodes {
		frames, err := s.Frames(ep.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range frames {
			states = append(states, f.State)
			actions = append(actions, f.Action)
		}
	}

	state, err = vectorStats(states)
	if err != nil {
		return nil, nil, err
	}
	action, err = vectorStats(actions)
	if err != nil {
		return nil, nil, err
	}
	return state, action, nil
}

func vectorStats(vectors [][]float64) (*Stats, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no frames to aggregate")
	}
	dims := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dims {
			return nil, errors.New("inconsistent vector dimensions")
		}
	}

	st := &Stats{
		Mean: make([]float64, dims),
		Std:  make([]float64, dims),
		Min:  make([]float64, dims),
		Max:  make([]float64, dims),
	}

	column := make([]float64, len(vectors))
	for d := range dims {
		for i, v := range vectors {
			column[i] = v[d]
		}
		st.Mean[d] = stat.Mean(column, nil)
		st.Std[d] = stat.StdDev(column, nil)
		st.Min[d] = column[0]
		st.Max[d] = column[0]
		for _, x := range column {
			if x < st.Min[d] {
				st.Min[d] = x
			}
			if x > st.Max[d] {
				st.Max[d] = x
			}
		}
	}
	return st, nil
}
