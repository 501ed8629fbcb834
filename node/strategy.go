package node

import "github.com/shreekarashastry/blocksim/chain"

// Strategy is the behaviour layered on top of the protocol engine. Plain
// relay nodes use Relay; miners and attackers live in the miner package.
type Strategy interface {
	// Start runs when the engine starts, after its peers are connected.
	Start(e *Engine)
	// Stop runs after the engine filled its statistics.
	Stop(e *Engine)
	// BlockReceived sees every new block before it is validated.
	BlockReceived(e *Engine, b chain.Block)
	// HigherBlock sees every validated block above the current chain height.
	HigherBlock(e *Engine, b chain.Block)
}

// Relay is the strategy of a node that only forwards blocks.
type Relay struct{}

func (Relay) Start(*Engine)                      {}
func (Relay) Stop(*Engine)                       {}
func (Relay) BlockReceived(*Engine, chain.Block) {}
func (Relay) HigherBlock(*Engine, chain.Block)   {}
