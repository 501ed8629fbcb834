package miner

import "fmt"

// Cryptocurrency selects the block size distribution.
type Cryptocurrency int

const (
	Bitcoin Cryptocurrency = iota
	Litecoin
	Dogecoin
)

func (c Cryptocurrency) String() string {
	switch c {
	case Bitcoin:
		return "BITCOIN"
	case Litecoin:
		return "LITECOIN"
	case Dogecoin:
		return "DOGECOIN"
	default:
		return fmt.Sprintf("CRYPTOCURRENCY(%d)", int(c))
	}
}

// BroadcastType is how a miner hands its blocks to its peers.
type BroadcastType int

const (
	Standard BroadcastType = iota
	Unsolicited
	RelayNetwork
	UnsolicitedRelayNetwork
)

func (b BroadcastType) String() string {
	switch b {
	case Standard:
		return "STANDARD"
	case Unsolicited:
		return "UNSOLICITED"
	case RelayNetwork:
		return "RELAY_NETWORK"
	case UnsolicitedRelayNetwork:
		return "UNSOLICITED_RELAY_NETWORK"
	default:
		return fmt.Sprintf("BROADCAST(%d)", int(b))
	}
}

// Kind is the mining behaviour of a node.
type Kind uint

const (
	HonestMiner Kind = iota
	SelfishMiner
	TrialsMiner
	SimpleAttacker
)

func (k Kind) String() string {
	switch k {
	case HonestMiner:
		return "honest"
	case SelfishMiner:
		return "selfish"
	case TrialsMiner:
		return "trials"
	case SimpleAttacker:
		return "simple-attacker"
	default:
		return fmt.Sprintf("kind(%d)", uint(k))
	}
}

const (
	DefaultHashRate       = 0.2
	DefaultTargetInterval = 10 * 60.0
	DefaultMaxBlockSize   = 1000000

	secondsPerMin          = 60
	realAverageInterval    = 10 * secondsPerMin
	headersSize            = 81
	averageTransactionSize = 522.4
)

// Params configures one mining process.
type Params struct {
	Kind     Kind
	HashRate float64
	// FixedInterval, when positive, replaces the geometric inter-block time.
	FixedInterval float64
	// FixedBlockSize, when positive, replaces the size distribution.
	FixedBlockSize int
	// TargetInterval is the average block interval in seconds the network aims at.
	TargetInterval float64
	// BlockGenBinSize and BlockGenParameter override the geometric
	// distribution when both are positive.
	BlockGenBinSize   float64
	BlockGenParameter float64
	Cryptocurrency    Cryptocurrency
	Broadcast         BroadcastType
	MaxBlockSize      int

	// Selfish mining.
	Table *DecisionTable

	// Trials and simple attacker.
	SecureBlocks    int
	AdvertiseBlocks bool
}

func (p *Params) setDefaults() {
	if p.HashRate <= 0 {
		p.HashRate = DefaultHashRate
	}
	if p.TargetInterval <= 0 {
		p.TargetInterval = DefaultTargetInterval
	}
	if p.MaxBlockSize <= 0 {
		p.MaxBlockSize = DefaultMaxBlockSize
	}
}

// Validate reports parameters the mining process cannot run with.
func (p Params) Validate() error {
	switch p.Kind {
	case SelfishMiner:
		if p.Table == nil {
			return fmt.Errorf("selfish miner needs a decision table")
		}
	case TrialsMiner, SimpleAttacker:
		if p.SecureBlocks <= 0 {
			return fmt.Errorf("%v needs a positive number of secure blocks", p.Kind)
		}
	}
	if p.HashRate < 0 {
		return fmt.Errorf("negative hash rate %v", p.HashRate)
	}
	return nil
}
