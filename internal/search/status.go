package search

// Status labels reported in taskStatus.
const (
	StatusNoResults      = "Completed: No Results"
	StatusMaxResults     = "Completed: Max Results"
	StatusAllResults     = "Completed: All Results"
	StatusPartialResults = "Completed: Partial Results"
	StatusFailed         = "Search Failed"
	StatusCancelled      = "Search Cancelled"
)

// Outcome is the poller's view of a status label.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "running"
	}
}

var (
	successLabels = map[string]struct{}{
		StatusNoResults:      {},
		StatusMaxResults:     {},
		StatusAllResults:     {},
		StatusPartialResults: {},
	}
	failureLabels = map[string]struct{}{
		StatusFailed:    {},
		StatusCancelled: {},
	}
)

// Classify maps a label to an Outcome by exact set membership. Labels outside
// both sets, including the empty string, mean the search is still running.
func Classify(label string) Outcome {
	if _, ok := successLabels[label]; ok {
		return OutcomeSucceeded
	}
	if _, ok := failureLabels[label]; ok {
		return OutcomeFailed
	}
	return OutcomeRunning
}

// IsCancelled reports whether label is the cancellation variant of failure.
func IsCancelled(label string) bool {
	return label == StatusCancelled
}
