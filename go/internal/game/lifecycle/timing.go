package lifecycle

import "time"

// Timing holds the round clock. Zero fields fall back to DefaultTiming.
type Timing struct {
	// CountdownStart is the first value broadcast before a round; one tick per CountdownInterval.
	CountdownStart    int           `yaml:"countdown_start"`
	CountdownInterval time.Duration `yaml:"countdown_interval"`
	// AutoSubmitDelay separates the round deadline from the reveal. Submissions are still
	// accepted unconditionally during it.
	AutoSubmitDelay time.Duration `yaml:"auto_submit_delay"`
	// SubmitTolerance bounds how late a submission sent before the deadline may arrive.
	SubmitTolerance time.Duration `yaml:"submit_tolerance"`
	// ResultsGrace is how long the final results stay up before the match is marked finished.
	ResultsGrace time.Duration `yaml:"results_grace"`
	MinPlayers   int           `yaml:"min_players"`
}

// DefaultTiming returns the production round clock.
func DefaultTiming() Timing {
	return Timing{
		CountdownStart:    3,
		CountdownInterval: time.Second,
		AutoSubmitDelay:   200 * time.Millisecond,
		SubmitTolerance:   600 * time.Millisecond,
		ResultsGrace:      60 * time.Second,
		MinPlayers:        2,
	}
}

// ResultDelay is the wait between the reveal and the results broadcast.
func (t Timing) ResultDelay() time.Duration {
	return t.AutoSubmitDelay + t.SubmitTolerance
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.CountdownStart <= 0 {
		t.CountdownStart = d.CountdownStart
	}
	if t.CountdownInterval <= 0 {
		t.CountdownInterval = d.CountdownInterval
	}
	if t.AutoSubmitDelay <= 0 {
		t.AutoSubmitDelay = d.AutoSubmitDelay
	}
	if t.SubmitTolerance <= 0 {
		t.SubmitTolerance = d.SubmitTolerance
	}
	if t.ResultsGrace <= 0 {
		t.ResultsGrace = d.ResultsGrace
	}
	if t.MinPlayers <= 0 {
		t.MinPlayers = d.MinPlayers
	}
	return t
}
