package ports

// StatusReporter receives coarse progress updates from long analyses
type StatusReporter interface {
	// Status announces a new stage with an overall completion percentage.
	Status(message string, percent int)
	// Complete marks the current stage done.
	Complete()
}

// NopStatus discards all progress updates
type NopStatus struct{}

func (NopStatus) Status(string, int) {}
func (NopStatus) Complete()          {}
