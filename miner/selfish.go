package miner

import (
	"fmt"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/node"
)

// Selfish withholds the blocks it mines and releases them according to a
// decision table over (forkType, la, lh), where la is the length of the
// private chain and lh the length of the public chain since the fork.
type Selfish struct {
	process
	table *DecisionTable

	forkType    ForkType
	la, lh      int
	attackerTop chain.Block
	honestTop   chain.Block
}

func NewSelfish(params Params) *Selfish {
	if params.Table == nil {
		panic("miner: selfish miner without a decision table")
	}
	genesis := chain.GenesisBlock()
	return &Selfish{
		process:     newProcess(params, true),
		table:       params.Table,
		attackerTop: genesis,
		honestTop:   genesis,
	}
}

// State returns the fork type and the private and public fork lengths.
func (s *Selfish) State() (ForkType, int, int) {
	return s.forkType, s.la, s.lh
}

func (s *Selfish) Start(e *node.Engine) {
	s.engine = e
	e.Logger().Info("Starting selfish miner", "hashRate", s.params.HashRate, "maxAttackBlocks", s.table.Cap())
	s.schedule(s.mineBlock)
}

// Stop counts the attacker's blocks on the public chain.
func (s *Selfish) Stop(e *node.Engine) {
	s.interruptMining()
	s.fillStats()

	inMain := 0
	b := s.honestTop
	for !b.IsGenesis() {
		if b.MinerID == int(e.ID()) {
			inMain++
		}
		parent, ok := e.Chain().ParentOf(b)
		if !ok {
			break
		}
		b = parent
	}
	e.Stats().MinedBlocksInMainChain = inMain
	e.Logger().Info("Stopped selfish miner", "generated", s.generated, "inMainChain", inMain,
		"attackSuccess", e.Stats().AttackSuccess)
}

func (s *Selfish) HigherBlock(*node.Engine, chain.Block) {}

func (s *Selfish) reset() {
	s.la, s.lh = 0, 0
	s.forkType = Irrelevant
}

func (s *Selfish) mineBlock() {
	b := s.newBlock(s.attackerTop)
	s.engine.AddMinedBlock(b)
	s.attackerTop = b
	s.la++
	s.record(b)
	s.engine.Logger().Info("Mined a private block", "block", b.Key(), "hash", b.Hash().TerminalString(), "la", s.la, "lh", s.lh, "fork", s.forkType)

	if s.la == s.table.Cap() {
		s.release(s.la, s.attackerTop.Height)
		s.engine.Stats().AttackSuccess++
		s.reset()
		s.honestTop = s.attackerTop
	} else {
		if s.forkType != Active {
			s.forkType = Irrelevant
		}
		s.act(s.table.Lookup(s.forkType, s.la, s.lh), false)
	}
	s.schedule(s.mineBlock)
}

// BlockReceived tracks the public chain and reacts to it.
func (s *Selfish) BlockReceived(e *node.Engine, b chain.Block) {
	if b.Height > s.honestTop.Height {
		if s.forkType == Active && b.ParentMinerID == int(e.ID()) {
			s.la -= s.lh
			s.lh = 1
		} else {
			s.lh++
		}
		s.forkType = Relevant
		s.honestTop = b

		if s.lh == s.table.Cap() {
			e.Logger().Info("Abandoned the attack", "block", b.Key())
			s.reset()
			s.attackerTop = b
		}
	} else if s.forkType != Active {
		s.forkType = Irrelevant
	}
	s.act(s.table.Lookup(s.forkType, s.la, s.lh), true)
}

func (s *Selfish) restartMining() {
	s.interruptMining()
	s.schedule(s.mineBlock)
}

func (s *Selfish) act(a Action, received bool) {
	s.engine.Logger().Debug("Selfish action", "action", a, "fork", s.forkType, "la", s.la, "lh", s.lh)
	switch a {
	case Adopt:
		s.attackerTop = s.honestTop
		s.reset()
		if received {
			s.restartMining()
		}
	case Override:
		s.release(s.lh+1, s.honestTop.Height+1)
		s.la -= s.lh + 1
		s.lh = 0
		s.forkType = Irrelevant
	case Match:
		s.release(s.lh, s.honestTop.Height)
		s.forkType = Active
	case Wait:
	case Exit:
		s.release(s.la, s.attackerTop.Height)
		s.engine.Stats().AttackSuccess++
		s.reset()
		s.honestTop = s.attackerTop
	default:
		panic(fmt.Sprintf("miner: undefined selfish action in state %v la=%d lh=%d", s.forkType, s.la, s.lh))
	}
}

// release publishes n private blocks ending with the attacker's block at
// height top.
func (s *Selfish) release(n, top int) {
	if n <= 0 {
		return
	}
	id := int(s.engine.ID())
	b, ok := s.engine.Chain().ReturnBlock(top, id)
	if !ok {
		s.engine.Logger().Error("Private block not found", "height", top)
		return
	}
	blocks := make([]chain.Block, n)
	for i := n - 1; i >= 0; i-- {
		blocks[i] = b
		if i == 0 {
			break
		}
		parent, ok := s.engine.Chain().ParentOf(b)
		if !ok || parent.MinerID != id {
			s.engine.Logger().Error("Private chain broken", "height", b.Height-1, "released", n-i)
			blocks = blocks[i:]
			break
		}
		b = parent
	}
	s.engine.Logger().Info("Released private blocks", "count", len(blocks), "top", top)
	broadcast(s.engine, s.params.Broadcast, blocks)
}
