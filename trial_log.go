package trialsink

import "sync"

// TrialLog is an append-only, ordered collection of completed trials for one session.
// It is created empty at session start and handed to whatever produces trial records.
type TrialLog struct {
	mu     sync.Mutex
	trials []Trial
}

// NewTrialLog creates an empty TrialLog.
func NewTrialLog() *TrialLog {
	return &TrialLog{}
}

// Append adds a trial at the end of the log. The log keeps its own copy, so later changes to
// trial by the caller are not visible through the log.
func (x *TrialLog) Append(trial Trial) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.trials = append(x.trials, trial.Clone())
}

// All returns a snapshot of the log in append order. Trials appended after the call are not
// reflected in the returned slice.
func (x *TrialLog) All() []Trial {
	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]Trial, len(x.trials))
	for i, t := range x.trials {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the number of logged trials.
func (x *TrialLog) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.trials)
}

// StepCount returns the total number of steps across all logged trials, which is also the
// number of data rows the log projects to.
func (x *TrialLog) StepCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	var n int
	for _, t := range x.trials {
		n += len(t.History)
	}
	return n
}
