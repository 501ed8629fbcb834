package node

import (
	"github.com/shreekarashastry/blocksim/chain"
)

// ReceiveBlock accepts a block body, from the network or reassembled from
// chunks, and starts validating it.
func (e *Engine) ReceiveBlock(b chain.Block) {
	key := b.Key()
	if e.Known(key) {
		e.clearInvRequest(key)
		return
	}
	e.MarkReceived(b)
	e.clearInvRequest(key)
	e.strategy.BlockReceived(e, b)
	e.ValidateBlock(b)
}

// ValidateBlock parks a block without a parent in the orphan pool, and
// otherwise adds it to the chain after the validation delay.
func (e *Engine) ValidateBlock(b chain.Block) {
	if _, ok := e.chain.ParentOf(b); !ok {
		if !e.chain.IsOrphan(b) {
			e.logger.Debug("Orphan block", "block", b.Key(), "parent", b.ParentKey())
			e.chain.AddOrphan(b)
		}
		return
	}
	e.sched.Schedule(ValidationTime(b.Size), func() {
		e.afterBlockValidation(b)
	})
}

func (e *Engine) afterBlockValidation(b chain.Block) {
	if e.stopped || e.chain.HasBlockKey(b.Key()) {
		return
	}
	delete(e.receivedNotValidated, b.Key())
	if b.Height > e.chain.Height() {
		e.strategy.HigherBlock(e, b)
	}
	e.chain.RemoveOrphan(b)

	t := float64(e.chain.TotalBlocks())
	e.meanReceiveTime = (t-1)/t*e.meanReceiveTime + (b.TimeReceived-e.previousReceiveTime)/t
	e.previousReceiveTime = b.TimeReceived
	e.meanPropagationTime = (t-1)/t*e.meanPropagationTime + (b.TimeReceived-b.TimeCreated)/t
	e.meanBlockSize = (t-1)/t*e.meanBlockSize + float64(b.Size)/t

	e.chain.AddBlock(b)
	e.logger.Debug("Validated block", "block", b.Key(), "from", b.ReceivedFrom, "height", e.chain.Height())
	if e.validated != nil {
		e.validated(e.id, b)
	}

	e.Advertise([]chain.Block{b}, b.ReceivedFrom)
	for _, child := range e.chain.OrphanChildrenOf(b) {
		e.ValidateBlock(child)
	}
}

// AddMinedBlock inserts a block mined by this node. Announcing it is left
// to the caller.
func (e *Engine) AddMinedBlock(b chain.Block) {
	now := e.Now()
	t := float64(e.chain.TotalBlocks())
	e.meanReceiveTime = (t-1)/t*e.meanReceiveTime + (now-e.previousReceiveTime)/t
	e.previousReceiveTime = now
	e.meanPropagationTime = (t - 1) / t * e.meanPropagationTime
	e.meanBlockSize = (t-1)/t*e.meanBlockSize + float64(b.Size)/t

	e.chain.AddBlock(b)
	if e.validated != nil {
		e.validated(e.id, b)
	}
}
