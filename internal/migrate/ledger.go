// Package migrate applies the ordered chain of reversible schema revisions.
//
// Each revision names its predecessor, so the chain is a singly linked list from
// the base revision (no predecessor) to the head. The database records the last
// applied revision in schema_revision. Every step runs in its own transaction
// together with the version update, so a step is applied exactly once or not at all.
package migrate

import (
	"context"
	"errors"
	"fmt"
)

const (
	// Head is the symbolic target for the newest revision.
	Head = "head"
	// Base is the symbolic target for an empty schema.
	Base = "base"
)

// Ledger errors.
var (
	ErrEmptyChain        = errors.New("migration chain is empty")
	ErrDuplicateRevision = errors.New("duplicate revision")
	ErrBrokenChain       = errors.New("migration chain is not linear")
	ErrUnknownRevision   = errors.New("unknown revision")
	ErrWrongDirection    = errors.New("target revision is on the other side of current")
)

// StepFunc is one direction of a revision.
type StepFunc func(ctx context.Context, s *Scope) error

// Step is a single revision in the chain.
type Step struct {
	Revision     string
	DownRevision string
	Description  string
	Up           StepFunc
	Down         StepFunc
}

// Ledger is a validated, ordered migration chain.
type Ledger struct {
	steps []Step
	index map[string]int
}

// NewLedger orders steps by their predecessor links and validates that they
// form exactly one chain: unique revisions, one base, no forks, no cycles,
// and no dangling predecessors.
func NewLedger(steps ...Step) (*Ledger, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyChain
	}

	byRev := make(map[string]Step, len(steps))
	children := make(map[string]string, len(steps))
	var base *Step
	for i := range steps {
		st := steps[i]
		if st.Revision == "" || st.Revision == Head || st.Revision == Base {
			return nil, fmt.Errorf("%w: invalid revision id %q", ErrBrokenChain, st.Revision)
		}
		if st.Up == nil || st.Down == nil {
			return nil, fmt.Errorf("%w: revision %s must define both directions", ErrBrokenChain, st.Revision)
		}
		if _, ok := byRev[st.Revision]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRevision, st.Revision)
		}
		byRev[st.Revision] = st

		if st.DownRevision == "" {
			if base != nil {
				return nil, fmt.Errorf("%w: multiple base revisions %s and %s", ErrBrokenChain, base.Revision, st.Revision)
			}
			base = &steps[i]
			continue
		}
		if other, ok := children[st.DownRevision]; ok {
			return nil, fmt.Errorf("%w: %s and %s both follow %s", ErrBrokenChain, other, st.Revision, st.DownRevision)
		}
		children[st.DownRevision] = st.Revision
	}
	if base == nil {
		return nil, fmt.Errorf("%w: no base revision", ErrBrokenChain)
	}

	ordered := make([]Step, 0, len(steps))
	index := make(map[string]int, len(steps))
	for rev := base.Revision; rev != ""; rev = children[rev] {
		index[rev] = len(ordered)
		ordered = append(ordered, byRev[rev])
	}
	if len(ordered) != len(steps) {
		return nil, fmt.Errorf("%w: %d of %d revisions reachable from base", ErrBrokenChain, len(ordered), len(steps))
	}

	return &Ledger{steps: ordered, index: index}, nil
}

// Steps returns the chain from base to head.
func (l *Ledger) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Head returns the newest revision id.
func (l *Ledger) Head() string {
	return l.steps[len(l.steps)-1].Revision
}

// position returns the number of steps applied at rev: 0 for base, i+1 for the i-th step.
func (l *Ledger) position(rev string) (int, error) {
	switch rev {
	case "", Base:
		return 0, nil
	case Head:
		return len(l.steps), nil
	}
	i, ok := l.index[rev]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
	}
	return i + 1, nil
}

// UpgradePath returns the steps to apply, in order, to move from current to target.
func (l *Ledger) UpgradePath(current, target string) ([]Step, error) {
	from, err := l.position(current)
	if err != nil {
		return nil, err
	}
	to, err := l.position(target)
	if err != nil {
		return nil, err
	}
	if to < from {
		return nil, fmt.Errorf("%w: upgrade from %s to %s", ErrWrongDirection, current, target)
	}
	return l.steps[from:to], nil
}

// DowngradePath returns the steps to revert, newest first, to move from current to target.
func (l *Ledger) DowngradePath(current, target string) ([]Step, error) {
	from, err := l.position(current)
	if err != nil {
		return nil, err
	}
	to, err := l.position(target)
	if err != nil {
		return nil, err
	}
	if to > from {
		return nil, fmt.Errorf("%w: downgrade from %s to %s", ErrWrongDirection, current, target)
	}
	path := make([]Step, 0, from-to)
	for i := from - 1; i >= to; i-- {
		path = append(path, l.steps[i])
	}
	return path, nil
}
