package miner

import (
	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/node"
)

// Attacker races the honest network for a run of SecureBlocks consecutive
// blocks. Every honest block that overtakes it starts a new trial.
type Attacker struct {
	process
	stopOnSuccess bool

	streak int
	trials int
}

// NewTrials returns an attacker that records the number of trials it needed
// and stops the simulation on its first success.
func NewTrials(params Params) *Attacker {
	return &Attacker{process: newProcess(params, true), stopOnSuccess: true, trials: 1}
}

// NewSimpleAttacker returns an attacker that counts its successes and keeps
// mining.
func NewSimpleAttacker(params Params) *Attacker {
	return &Attacker{process: newProcess(params, true), trials: 1}
}

func (a *Attacker) Start(e *node.Engine) {
	a.engine = e
	e.Logger().Info("Starting attacker", "secureBlocks", a.params.SecureBlocks,
		"advertiseBlocks", a.params.AdvertiseBlocks, "hashRate", a.params.HashRate)
	a.schedule(a.mineBlock)
}

func (a *Attacker) Stop(e *node.Engine) {
	a.interruptMining()
	a.fillStats()
	e.Logger().Info("Stopped attacker", "trials", a.trials, "streak", a.streak,
		"attackSuccess", e.Stats().AttackSuccess)
}

func (a *Attacker) BlockReceived(*node.Engine, chain.Block) {}

// HigherBlock ends the current trial.
func (a *Attacker) HigherBlock(e *node.Engine, b chain.Block) {
	e.Logger().Debug("Honest chain overtook the attacker", "block", b.Key(), "streak", a.streak)
	a.streak = 0
	a.trials++
	a.interruptMining()
	a.schedule(a.mineBlock)
}

// Trials returns the number of trials started so far.
func (a *Attacker) Trials() int {
	return a.trials
}

func (a *Attacker) mineBlock() {
	b := a.newBlock(a.engine.Chain().TopBlock())
	a.engine.AddMinedBlock(b)
	a.record(b)
	a.streak++
	if a.params.AdvertiseBlocks {
		broadcast(a.engine, a.params.Broadcast, []chain.Block{b})
	}

	if a.streak == a.params.SecureBlocks {
		a.engine.Logger().Info("The attack was successful", "trials", a.trials)
		if a.stopOnSuccess {
			a.engine.Stats().AttackSuccess = a.trials
			a.engine.Scheduler().Stop()
			return
		}
		a.engine.Stats().AttackSuccess++
		a.streak = 0
	}
	a.schedule(a.mineBlock)
}
