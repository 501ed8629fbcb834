package miner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ForkType is the state of the race between the private and public chains.
type ForkType int

const (
	Irrelevant ForkType = iota
	Relevant
	Active
	numForkTypes
)

func (f ForkType) String() string {
	switch f {
	case Irrelevant:
		return "IRRELEVANT"
	case Relevant:
		return "RELEVANT"
	case Active:
		return "ACTIVE"
	default:
		return fmt.Sprintf("FORK(%d)", int(f))
	}
}

// Action is what the selfish miner does in a given state.
type Action byte

const (
	Adopt    Action = 'a'
	Override Action = 'o'
	Match    Action = 'm'
	Wait     Action = 'w'
	Exit     Action = 'e'
	Error    Action = '*'
)

func (a Action) String() string {
	switch a {
	case Adopt:
		return "ADOPT"
	case Override:
		return "OVERRIDE"
	case Match:
		return "MATCH"
	case Wait:
		return "WAIT"
	case Exit:
		return "EXIT"
	default:
		return "ERROR"
	}
}

func validAction(c byte) bool {
	switch Action(c) {
	case Adopt, Override, Match, Wait, Exit, Error:
		return true
	}
	return false
}

var ErrInvalidTable = errors.New("invalid decision table")

// DecisionTable maps (forkType, la, lh) to an action, with la and lh in
// [0, Cap).
type DecisionTable struct {
	maxFork int
	cells   [numForkTypes][]Action
}

func newDecisionTable(maxFork int) *DecisionTable {
	t := &DecisionTable{maxFork: maxFork}
	for f := range t.cells {
		t.cells[f] = make([]Action, maxFork*maxFork)
		for i := range t.cells[f] {
			t.cells[f][i] = Error
		}
	}
	return t
}

// Cap is the maximum private or public fork length the table covers.
func (t *DecisionTable) Cap() int {
	return t.maxFork
}

// Lookup returns the action for the state, or Error outside the table.
func (t *DecisionTable) Lookup(f ForkType, la, lh int) Action {
	if f < 0 || f >= numForkTypes || la < 0 || lh < 0 || la >= t.maxFork || lh >= t.maxFork {
		return Error
	}
	return t.cells[f][la*t.maxFork+lh]
}

func (t *DecisionTable) set(f ForkType, la, lh int, a Action) {
	t.cells[f][la*t.maxFork+lh] = a
}

// String renders the table in the format read by ParseDecisionTable.
func (t *DecisionTable) String() string {
	var sb strings.Builder
	for f := ForkType(0); f < numForkTypes; f++ {
		if f > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "# %v\n", f)
		for la := 0; la < t.maxFork; la++ {
			for lh := 0; lh < t.maxFork; lh++ {
				sb.WriteByte(byte(t.Lookup(f, la, lh)))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseDecisionTable reads three square matrices, IRRELEVANT then RELEVANT
// then ACTIVE, one row per la and one letter per lh. Blank lines and lines
// starting with '#' are ignored, as are spaces and commas between letters.
func ParseDecisionTable(r io.Reader) (*DecisionTable, error) {
	var rows []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.NewReplacer(" ", "", "\t", "", ",", "").Replace(line)
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read decision table: %w", err)
	}
	if len(rows) == 0 || len(rows)%int(numForkTypes) != 0 {
		return nil, fmt.Errorf("%w: %d rows is not three square matrices", ErrInvalidTable, len(rows))
	}
	maxFork := len(rows) / int(numForkTypes)
	t := newDecisionTable(maxFork)
	for i, row := range rows {
		if len(row) != maxFork {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidTable, i+1, len(row), maxFork)
		}
		f, la := ForkType(i/maxFork), i%maxFork
		for lh := 0; lh < maxFork; lh++ {
			if !validAction(row[lh]) {
				return nil, fmt.Errorf("%w: unknown action %q at row %d", ErrInvalidTable, row[lh], i+1)
			}
			t.set(f, la, lh, Action(row[lh]))
		}
	}
	return t, nil
}

// SM1Table is the classic selfish mining policy: keep the private chain
// secret, override when one block ahead of a competing chain, match a chain
// of equal length and give up once behind.
func SM1Table(maxFork int) *DecisionTable {
	t := newDecisionTable(maxFork)
	for f := ForkType(0); f < numForkTypes; f++ {
		for la := 0; la < maxFork; la++ {
			for lh := 0; lh < maxFork; lh++ {
				t.set(f, la, lh, sm1Action(f, la, lh))
			}
		}
	}
	return t
}

func sm1Action(f ForkType, la, lh int) Action {
	switch {
	case la == 0 && lh == 0:
		return Wait
	case lh > la:
		return Adopt
	}
	switch f {
	case Irrelevant:
		if la == lh+1 && lh >= 1 {
			return Override
		}
	case Relevant:
		if la == lh && lh >= 1 {
			return Match
		}
		if la == lh+1 {
			return Override
		}
	case Active:
		if la == lh+1 {
			return Override
		}
	}
	return Wait
}

type tableKey struct {
	alpha, gamma float64
	maxFork      int
}

var optimalTables, _ = lru.New[tableKey, *DecisionTable](32)

// OptimalTable returns the revenue-maximizing policy for an attacker with
// hash power share alpha and tie-winning share gamma. It solves the selfish
// mining Markov decision process of Sapirshtein, Sompolinsky and Zohar with
// relative value iteration and a binary search on the relative revenue.
func OptimalTable(alpha, gamma float64, maxFork int) *DecisionTable {
	if alpha <= 0 || alpha >= 1 || gamma < 0 || gamma > 1 || maxFork < 1 {
		panic(fmt.Sprintf("miner: invalid optimal table parameters alpha=%v gamma=%v maxFork=%d", alpha, gamma, maxFork))
	}
	key := tableKey{alpha: alpha, gamma: gamma, maxFork: maxFork}
	if t, ok := optimalTables.Get(key); ok {
		return t
	}
	m := newMDP(alpha, gamma, maxFork)
	low, high := 0.0, 1.0
	for i := 0; i < searchSteps; i++ {
		rho := (low + high) / 2
		if gain, _ := m.solve(rho); gain > 0 {
			low = rho
		} else {
			high = rho
		}
	}
	_, policy := m.solve(low)

	t := newDecisionTable(maxFork)
	for f := ForkType(0); f < numForkTypes; f++ {
		for la := 0; la < maxFork; la++ {
			for lh := 0; lh < maxFork; lh++ {
				t.set(f, la, lh, policy[m.index(la, lh, f)])
			}
		}
	}
	optimalTables.Add(key, t)
	return t
}

const (
	searchSteps   = 20
	maxIterations = 20000
	damping       = 0.5
	tolerance     = 1e-9
)

type transition struct {
	prob   float64
	next   int
	ra, rh float64
}

type choice struct {
	action      Action
	transitions []transition
}

// mdp is the selfish mining process with states (a, h, fork), a and h in
// [0, maxFork].
type mdp struct {
	size    int
	choices [][]choice
}

func newMDP(alpha, gamma float64, maxFork int) *mdp {
	m := &mdp{size: maxFork + 1}
	m.choices = make([][]choice, m.size*m.size*int(numForkTypes))
	for a := 0; a <= maxFork; a++ {
		for h := 0; h <= maxFork; h++ {
			for f := ForkType(0); f < numForkTypes; f++ {
				m.choices[m.index(a, h, f)] = m.actions(alpha, gamma, maxFork, a, h, f)
			}
		}
	}
	return m
}

func (m *mdp) index(a, h int, f ForkType) int {
	return (int(f)*m.size+a)*m.size + h
}

func (m *mdp) actions(alpha, gamma float64, maxFork, a, h int, f ForkType) []choice {
	var cs []choice
	// Adopting without a public fork only throws private blocks away.
	if h > 0 {
		cs = append(cs, choice{Adopt, []transition{
			{prob: alpha, next: m.index(1, 0, Irrelevant), rh: float64(h)},
			{prob: 1 - alpha, next: m.index(0, 1, Relevant), rh: float64(h)},
		}})
	}
	if a > h {
		cs = append(cs, choice{Override, []transition{
			{prob: alpha, next: m.index(a-h, 0, Irrelevant), ra: float64(h + 1)},
			{prob: 1 - alpha, next: m.index(a-h-1, 1, Relevant), ra: float64(h + 1)},
		}})
	}
	if a == maxFork || h == maxFork {
		return cs
	}
	if f != Active {
		cs = append(cs, choice{Wait, []transition{
			{prob: alpha, next: m.index(a+1, h, Irrelevant)},
			{prob: 1 - alpha, next: m.index(a, h+1, Relevant)},
		}})
	}
	if (f == Relevant && a >= h && h > 0) || f == Active {
		action := Match
		if f == Active {
			action = Wait
		}
		cs = append(cs, choice{action, []transition{
			{prob: alpha, next: m.index(a+1, h, Active)},
			{prob: gamma * (1 - alpha), next: m.index(a-h, 1, Relevant), ra: float64(h)},
			{prob: (1 - gamma) * (1 - alpha), next: m.index(a, h+1, Relevant)},
		}})
	}
	return cs
}

// solve runs relative value iteration for the reward (1-rho)*Ra - rho*Rh
// and returns the average reward per step with the greedy policy.
func (m *mdp) solve(rho float64) (float64, []Action) {
	n := len(m.choices)
	values := make([]float64, n)
	next := make([]float64, n)
	policy := make([]Action, n)
	ref := m.index(0, 0, Irrelevant)
	gain := 0.0

	for iter := 0; iter < maxIterations; iter++ {
		for s, cs := range m.choices {
			best := math.Inf(-1)
			for _, c := range cs {
				q := 0.0
				for _, t := range c.transitions {
					q += t.prob * ((1-rho)*t.ra - rho*t.rh + values[t.next])
				}
				if q > best+1e-12 {
					best = q
					policy[s] = c.action
				}
			}
			next[s] = best
		}
		gain = next[ref] - values[ref]
		lo, hi := math.Inf(1), math.Inf(-1)
		for s := range next {
			d := next[s] - values[s]
			lo, hi = math.Min(lo, d), math.Max(hi, d)
		}
		offset := next[ref]
		for s := range values {
			values[s] = (1-damping)*values[s] + damping*(next[s]-offset)
		}
		if hi-lo < tolerance {
			gain = (hi + lo) / 2
			break
		}
	}
	return gain, policy
}
