package agent

import (
	"slices"

	"github.com/knoguchi/supportagent/internal/model"
)

// Step is a state of the agent loop.
type Step int

const (
	StepClassifyIntent Step = iota
	StepRetrieve
	StepRerank
	StepGenerate
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepClassifyIntent:
		return "classify_intent"
	case StepRetrieve:
		return "retrieve"
	case StepRerank:
		return "rerank"
	case StepGenerate:
		return "generate"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the loop stops at s.
func (s Step) IsTerminal() bool {
	return s == StepDone
}

// State is the value threaded through the loop. Transitions never modify
// a State in place; each returns a new value.
type State struct {
	Step              Step
	SessionID         string
	UserQuery         string
	Intent            model.Category
	RetrievedPassages []model.Passage
	SelectedPassages  []model.Passage
	Answer            string
	NeedsEscalation   bool
	IterationCount    int
	History           []model.Turn
}

// NewState seeds a run with prior conversation history.
func NewState(sessionID, query string, history []model.Turn) State {
	return State{
		Step:      StepClassifyIntent,
		SessionID: sessionID,
		UserQuery: query,
		History:   slices.Clone(history),
	}
}

func (s State) withIntent(c model.Category) State {
	s.Intent = c
	return s
}

// withRetrieved replaces the previous pass's passages and drops its selection.
func (s State) withRetrieved(passages []model.Passage) State {
	s.RetrievedPassages = passages
	s.SelectedPassages = []model.Passage{}
	s.IterationCount++
	return s
}

func (s State) withSelected(passages []model.Passage) State {
	s.SelectedPassages = passages
	return s
}

func (s State) withGeneration(g model.Generation) State {
	s.Answer = g.Answer
	s.NeedsEscalation = g.Escalate
	return s
}

func (s State) withStep(step Step) State {
	s.Step = step
	return s
}

// withTurnAppended returns s with the user and assistant turns added to a
// fresh copy of the history.
func (s State) withTurnAppended(user, assistant model.Turn) State {
	history := make([]model.Turn, 0, len(s.History)+2)
	history = append(history, s.History...)
	s.History = append(history, user, assistant)
	return s
}
