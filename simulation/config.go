package simulation

import (
	"errors"
	"fmt"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/miner"
	"github.com/shreekarashastry/blocksim/node"
)

var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrAlreadyRun    = errors.New("simulation already run")
)

// MinerSpec installs a mining strategy on one node.
type MinerSpec struct {
	ID     chain.NodeID
	Params miner.Params
}

// Config describes one run. Node carries the protocol parameters shared by
// every node; its Peers and Seed fields are filled from the topology and
// Seed. Its rates apply to nodes without rates of their own in the topology.
type Config struct {
	Node   node.Config
	Miners []MinerSpec

	TargetBlocks  int
	BlockInterval float64
	Seed          int64
}

// StopTime is the virtual time at which the run ends.
func (c Config) StopTime() float64 {
	return float64(c.TargetBlocks) * c.BlockInterval
}

func (c *Config) setDefaults() {
	if c.BlockInterval <= 0 {
		c.BlockInterval = miner.DefaultTargetInterval
	}
}

// Validate checks cfg against a topology of n nodes.
func (c Config) Validate(n int) error {
	if c.TargetBlocks <= 0 {
		return fmt.Errorf("%w: target blocks %d", ErrInvalidConfig, c.TargetBlocks)
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("%w: block interval %v", ErrInvalidConfig, c.BlockInterval)
	}
	if c.Node.DownloadRate <= 0 || c.Node.UploadRate <= 0 {
		return fmt.Errorf("%w: rates must be positive", ErrInvalidConfig)
	}
	seen := make(map[chain.NodeID]bool, len(c.Miners))
	for _, m := range c.Miners {
		if int(m.ID) < 0 || int(m.ID) >= n {
			return fmt.Errorf("%w: miner %d out of range", ErrInvalidConfig, m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: miner %d configured twice", ErrInvalidConfig, m.ID)
		}
		seen[m.ID] = true
		if err := m.Params.Validate(); err != nil {
			return fmt.Errorf("%w: miner %d: %v", ErrInvalidConfig, m.ID, err)
		}
	}
	return nil
}
