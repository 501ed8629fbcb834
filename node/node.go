package node

import (
	"math/rand"

	"github.com/hashicorp/go-hclog"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/sched"
	"github.com/shreekarashastry/blocksim/transport"
	"github.com/shreekarashastry/blocksim/wire"
)

// Engine is the protocol state machine of one simulated node. All of its
// state is mutated from scheduler callbacks only.
type Engine struct {
	id       chain.NodeID
	cfg      Config
	sched    *sched.Scheduler
	net      *transport.Network
	link     transport.Link
	chain    *chain.Blockchain
	strategy Strategy
	logger   hclog.Logger
	rand     *rand.Rand
	stats    Statistics

	peers   []PeerInfo
	peerIdx map[chain.NodeID]int
	streams map[chain.NodeID]*wire.Stream

	receivedNotValidated map[chain.Key]chain.Block
	onlyHeaders          map[chain.Key]chain.Block
	invTimeouts          map[chain.Key]*sched.Event
	queueInv             map[chain.Key][]chain.NodeID
	chunkTimeouts        map[wire.ChunkKey]*sched.Event
	queueChunks          map[chain.Key][]int
	queueChunkPeers      map[chain.Key][]chain.NodeID
	receivedChunks       map[chain.Key][]int

	meanReceiveTime     float64
	meanPropagationTime float64
	meanBlockSize       float64
	previousReceiveTime float64

	validated func(id chain.NodeID, b chain.Block)
	running   bool
	stopped   bool
}

// New creates the engine for node id and registers it on the network.
func New(id chain.NodeID, cfg Config, s *sched.Scheduler, net *transport.Network, logger hclog.Logger) *Engine {
	cfg.setDefaults()
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	e := &Engine{
		id:                   id,
		cfg:                  cfg,
		sched:                s,
		net:                  net,
		chain:                chain.NewBlockchain(),
		strategy:             Relay{},
		logger:               logger,
		rand:                 rand.New(rand.NewSource(cfg.Seed + int64(id))),
		peers:                cfg.Peers,
		peerIdx:              make(map[chain.NodeID]int, len(cfg.Peers)),
		streams:              make(map[chain.NodeID]*wire.Stream),
		receivedNotValidated: make(map[chain.Key]chain.Block),
		onlyHeaders:          make(map[chain.Key]chain.Block),
		invTimeouts:          make(map[chain.Key]*sched.Event),
		queueInv:             make(map[chain.Key][]chain.NodeID),
		chunkTimeouts:        make(map[wire.ChunkKey]*sched.Event),
		queueChunks:          make(map[chain.Key][]int),
		queueChunkPeers:      make(map[chain.Key][]chain.NodeID),
		receivedChunks:       make(map[chain.Key][]int),
	}
	for i, p := range cfg.Peers {
		e.peerIdx[p.ID] = i
	}
	e.stats.NodeID = id
	net.Register(id, e)
	return e
}

// SetStrategy replaces the behaviour of the node. It must be called before Start.
func (e *Engine) SetStrategy(s Strategy) {
	if e.running {
		panic("node: strategy changed on a running engine")
	}
	e.strategy = s
}

// OnValidated registers fn to observe every block added to the local chain.
func (e *Engine) OnValidated(fn func(id chain.NodeID, b chain.Block)) {
	e.validated = fn
}

func (e *Engine) Start() {
	e.running = true
	e.stats.Connections = len(e.peers)
	e.logger.Debug("Starting node", "peers", len(e.peers), "protocol", e.cfg.Protocol,
		"blockTorrent", e.cfg.BlockTorrent, "chunkSize", e.cfg.ChunkSize, "spv", e.cfg.SPV)
	e.strategy.Start(e)
}

// Stop fills the statistics and drops every message that arrives afterwards.
func (e *Engine) Stop() {
	if e.stopped {
		return
	}
	e.stopped = true
	e.stats.MeanBlockReceiveTime = e.meanReceiveTime
	e.stats.MeanBlockPropagationTime = e.meanPropagationTime
	e.stats.MeanBlockSize = e.meanBlockSize
	e.stats.TotalBlocks = e.chain.TotalBlocks()
	e.stats.StaleBlocks = e.chain.StaleBlocks()
	e.stats.LongestFork, e.stats.BlocksInForks = e.chain.ForkMetrics()
	e.strategy.Stop(e)

	e.logger.Debug("Stopped node", "top", e.chain.TopBlock(), "totalBlocks", e.stats.TotalBlocks,
		"staleBlocks", e.stats.StaleBlocks, "meanPropagation", e.meanPropagationTime,
		"pendingValidation", len(e.receivedNotValidated))
}

func (e *Engine) ID() chain.NodeID            { return e.id }
func (e *Engine) Chain() *chain.Blockchain    { return e.chain }
func (e *Engine) Scheduler() *sched.Scheduler { return e.sched }
func (e *Engine) Now() float64                { return e.sched.Now() }
func (e *Engine) Stats() *Statistics          { return &e.stats }
func (e *Engine) Rand() *rand.Rand            { return e.rand }
func (e *Engine) Logger() hclog.Logger        { return e.logger }
func (e *Engine) Config() Config              { return e.cfg }
func (e *Engine) Peers() []PeerInfo           { return e.peers }
func (e *Engine) Stopped() bool               { return e.stopped }
func (e *Engine) Strategy() Strategy          { return e.strategy }
func (e *Engine) Link() *transport.Link       { return &e.link }
func (e *Engine) PendingValidation() int      { return len(e.receivedNotValidated) }

// IsMinerPeer reports whether id is a neighbour that mines.
func (e *Engine) IsMinerPeer(id chain.NodeID) bool {
	i, ok := e.peerIdx[id]
	return ok && e.peers[i].Miner
}

// OnlyHeaders reports whether only the header of the block is known.
func (e *Engine) OnlyHeaders(key chain.Key) bool {
	_, ok := e.onlyHeaders[key]
	return ok
}

// ReceivedButNotValidated reports whether the block is waiting for validation.
func (e *Engine) ReceivedButNotValidated(key chain.Key) bool {
	_, ok := e.receivedNotValidated[key]
	return ok
}

// MarkReceived records b as received but not validated.
func (e *Engine) MarkReceived(b chain.Block) {
	e.receivedNotValidated[b.Key()] = b
}

// Known reports whether the block is in the chain, in the orphan pool or
// waiting for validation.
func (e *Engine) Known(key chain.Key) bool {
	return e.chain.HasBlockKey(key) || e.chain.IsOrphanKey(key) || e.ReceivedButNotValidated(key)
}

// heldBlock returns a block whose body this node owns.
func (e *Engine) heldBlock(key chain.Key) (chain.Block, bool) {
	if b, ok := e.chain.ReturnBlock(key.Height, key.MinerID); ok {
		return b, true
	}
	b, ok := e.receivedNotValidated[key]
	return b, ok
}

func (e *Engine) uploadRateOf(id chain.NodeID) float64 {
	if i, ok := e.peerIdx[id]; ok && e.peers[i].UploadRate > 0 {
		return e.peers[i].UploadRate
	}
	return e.cfg.UploadRate
}

// Deliver is called by the network with raw bytes from a peer.
func (e *Engine) Deliver(from chain.NodeID, data []byte) {
	if e.stopped {
		return
	}
	s, ok := e.streams[from]
	if !ok {
		s = &wire.Stream{}
		e.streams[from] = s
	}
	msgs, err := s.Feed(data)
	if err != nil {
		e.logger.Warn("Dropped malformed frame", "peer", from, "err", err)
	}
	for _, msg := range msgs {
		e.handle(from, msg)
	}
}
