package simulation

import (
	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/node"
)

// Event is what the simulation feed carries. Exactly one field is set.
type Event struct {
	Block   *BlockEvent
	Summary *RunSummary
}

// BlockEvent reports a block added to the chain of one node.
type BlockEvent struct {
	Node  chain.NodeID `codec:"node"`
	Block chain.Block  `codec:"block"`
	Time  float64      `codec:"time"`
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	Seed     int64   `codec:"seed"`
	Duration float64 `codec:"duration"`
	// Stopped is set when a strategy ended the run before the stop time.
	Stopped     bool              `codec:"stopped"`
	EventsFired uint64            `codec:"eventsFired"`
	Nodes       []node.Statistics `codec:"nodes"`
}

// AttackSuccess sums the attack successes over every node.
func (r RunSummary) AttackSuccess() int {
	total := 0
	for _, s := range r.Nodes {
		total += s.AttackSuccess
	}
	return total
}
