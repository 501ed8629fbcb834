package miner

import (
	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/node"
	"github.com/shreekarashastry/blocksim/sched"
)

// process is the mining timer shared by every kind of miner. It draws the
// time to the next block and the size of that block, and keeps the miner's
// running averages.
type process struct {
	params Params
	engine *node.Engine
	sizes  *piecewise
	p      float64
	bin    float64
	next   *sched.Event

	generated       int
	averageInterval float64
	averageSize     float64
	previousGenTime float64
}

func newProcess(params Params, attacker bool) process {
	params.setDefaults()
	pr := process{params: params, sizes: sizeDistribution(params.Cryptocurrency, attacker)}
	if params.BlockGenBinSize > 0 && params.BlockGenParameter > 0 {
		pr.bin = params.BlockGenBinSize
		pr.p = params.BlockGenParameter * params.HashRate
	} else {
		pr.bin = 1. / secondsPerMin / 1000
		pr.p = 0.19 * pr.bin / 2
	}
	return pr
}

func (pr *process) nextInterval() float64 {
	if pr.params.FixedInterval > 0 {
		return pr.params.FixedInterval
	}
	draws := geometric(pr.engine.Rand(), pr.p)
	return draws * pr.bin * secondsPerMin * (pr.params.TargetInterval / realAverageInterval) / pr.params.HashRate
}

func (pr *process) nextBlockSize() int {
	if pr.params.FixedBlockSize > 0 {
		return pr.params.FixedBlockSize
	}
	size := pr.sizes.sample(pr.engine.Rand()) * 1000
	if pr.params.Cryptocurrency == Bitcoin {
		withHeaders := size < float64(pr.params.MaxBlockSize-headersSize)
		size = size * pr.params.TargetInterval / realAverageInterval
		if withHeaders {
			size += headersSize
		}
	}
	if size < averageTransactionSize {
		size = averageTransactionSize + headersSize
	}
	return int(size)
}

// schedule arms the next mining event.
func (pr *process) schedule(mine func()) {
	delay := pr.nextInterval()
	pr.next = pr.engine.Scheduler().Schedule(delay, mine)
	pr.engine.Logger().Trace("Scheduled mining", "in", delay)
}

func (pr *process) interruptMining() {
	pr.engine.Scheduler().Cancel(pr.next)
	pr.next = nil
}

// newBlock builds a block on parent created now by this node.
func (pr *process) newBlock(parent chain.Block) chain.Block {
	now := pr.engine.Now()
	return chain.Block{
		Height:        parent.Height + 1,
		MinerID:       int(pr.engine.ID()),
		ParentMinerID: parent.MinerID,
		Size:          pr.nextBlockSize(),
		TimeCreated:   now,
		TimeReceived:  now,
		ReceivedFrom:  pr.engine.ID(),
	}
}

// record updates the running averages of the miner with a generated block.
func (pr *process) record(b chain.Block) {
	now := pr.engine.Now()
	n := float64(pr.generated)
	pr.averageInterval = n/(n+1)*pr.averageInterval + (now-pr.previousGenTime)/(n+1)
	pr.averageSize = n/(n+1)*pr.averageSize + float64(b.Size)/(n+1)
	pr.previousGenTime = now
	pr.generated++
}

func (pr *process) fillStats() {
	stats := pr.engine.Stats()
	stats.Miner = 1
	stats.HashRate = pr.params.HashRate
	stats.MinerGeneratedBlocks = pr.generated
	stats.MinerAverageBlockGenInterval = pr.averageInterval
	stats.MinerAverageBlockSize = pr.averageSize
}

// broadcast hands blocks to the peers of e with the given policy.
func broadcast(e *node.Engine, policy BroadcastType, blocks []chain.Block) {
	switch policy {
	case Standard:
		e.Advertise(blocks, chain.NoPeer)
	case Unsolicited:
		for _, p := range e.Peers() {
			e.PushBlocks(blocks, p.ID, false)
		}
	case RelayNetwork:
		for _, p := range e.Peers() {
			if e.IsMinerPeer(p.ID) {
				e.PushBlocks(blocks, p.ID, true)
			} else {
				e.AdvertiseTo(blocks, p.ID)
			}
		}
	case UnsolicitedRelayNetwork:
		for _, p := range e.Peers() {
			e.PushBlocks(blocks, p.ID, e.IsMinerPeer(p.ID))
		}
	}
}

// Miner mines honestly on top of its chain and publishes every block at once.
type Miner struct {
	process
}

func NewMiner(params Params) *Miner {
	return &Miner{process: newProcess(params, false)}
}

func (m *Miner) Start(e *node.Engine) {
	m.engine = e
	e.Logger().Info("Starting miner", "hashRate", m.params.HashRate, "broadcast", m.params.Broadcast,
		"cryptocurrency", m.params.Cryptocurrency, "fixedInterval", m.params.FixedInterval)
	m.schedule(m.mineBlock)
}

func (m *Miner) Stop(e *node.Engine) {
	m.interruptMining()
	m.fillStats()
	e.Logger().Info("Stopped miner", "generated", m.generated, "averageInterval", m.averageInterval,
		"averageSize", m.averageSize)
}

func (m *Miner) BlockReceived(*node.Engine, chain.Block) {}

// HigherBlock restarts mining on the new top block.
func (m *Miner) HigherBlock(e *node.Engine, b chain.Block) {
	m.interruptMining()
	m.schedule(m.mineBlock)
}

func (m *Miner) mineBlock() {
	b := m.newBlock(m.engine.Chain().TopBlock())
	m.engine.AddMinedBlock(b)
	m.engine.Logger().Info("Mined a new block", "block", b.Key(), "hash", b.Hash().TerminalString(), "size", b.Size)
	broadcast(m.engine, m.params.Broadcast, []chain.Block{b})
	m.record(b)
	m.schedule(m.mineBlock)
}

// New returns the strategy for params.Kind.
func New(params Params) (node.Strategy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch params.Kind {
	case SelfishMiner:
		return NewSelfish(params), nil
	case TrialsMiner:
		return NewTrials(params), nil
	case SimpleAttacker:
		return NewSimpleAttacker(params), nil
	default:
		return NewMiner(params), nil
	}
}
