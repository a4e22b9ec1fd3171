package events

// Event types emitted over the course of one planning run.
const (
	RunStartedEvent     = "run.started"
	PhaseStartedEvent   = "phase.started"
	PhaseCompletedEvent = "phase.completed"
	PhaseSkippedEvent   = "phase.skipped"
	RunCompletedEvent   = "run.completed"
	RunFailedEvent      = "run.failed"
)

// RunStarted announces a new planning run over a built model.
type RunStarted struct {
	Variables   int `json:"variables"`
	Constraints int `json:"constraints"`
}

// PhaseStarted announces one lexicographic phase.
type PhaseStarted struct {
	Phase string `json:"phase"`
}

// PhaseCompleted carries the optimal value a phase locked in.
type PhaseCompleted struct {
	Phase     string  `json:"phase"`
	Objective float64 `json:"objective"`
}

// PhaseSkipped is emitted when a phase has an empty objective (for
// example the lane-priority phase of a single-location network).
type PhaseSkipped struct {
	Phase string `json:"phase"`
}

// RunCompleted carries the final metrics of a successful run.
type RunCompleted struct {
	Backlog   float64 `json:"backlog"`
	Inventory float64 `json:"inventory"`
	BuyVolume float64 `json:"buy_volume"`
}

// RunFailed records the failing phase and error text.
type RunFailed struct {
	Phase string `json:"phase"`
	Error string `json:"error"`
}
