package orchestrator

import "log/slog"

// State is a step of one domain worker handling one query.
type State int

const (
	StateIdle State = iota
	StateAssessing
	StateSearching
	StateExpanding
	StateDeciding
	StateCollaborating
	StateMerging
	StateDone
)

var stateNames = [...]string{"idle", "assessing", "searching", "expanding", "deciding", "collaborating", "merging", "done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// tracker logs the state transitions of one query in one domain.
type tracker struct {
	logger  *slog.Logger
	domain  string
	query   string
	state   State
	visited []State
}

func newTracker(logger *slog.Logger, domain, query string) *tracker {
	return &tracker{logger: logger, domain: domain, query: query}
}

func (t *tracker) to(next State) {
	t.logger.Debug("Domain worker state", "domain", t.domain, "from", t.state.String(), "to", next.String(), "query", t.query)
	t.state = next
	t.visited = append(t.visited, next)
}
