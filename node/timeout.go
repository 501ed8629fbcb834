package node

import (
	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/wire"
)

func (e *Engine) armInvTimeout(key chain.Key) {
	e.invTimeouts[key] = e.sched.Schedule(e.cfg.InvTimeout, func() {
		e.invTimeout(key)
	})
}

// clearInvRequest forgets the outstanding request for a block.
func (e *Engine) clearInvRequest(key chain.Key) {
	if ev, ok := e.invTimeouts[key]; ok {
		e.sched.Cancel(ev)
		delete(e.invTimeouts, key)
	}
	delete(e.queueInv, key)
}

// invTimeout drops the peer that failed to deliver the block and asks one
// of the other announcers.
func (e *Engine) invTimeout(key chain.Key) {
	if e.stopped {
		return
	}
	e.stats.BlockTimeouts++
	delete(e.invTimeouts, key)

	queue := e.queueInv[key]
	if len(queue) > 0 {
		queue = queue[1:]
	}
	if len(queue) == 0 || e.Known(key) {
		delete(e.queueInv, key)
		return
	}
	i := e.rand.Intn(len(queue))
	queue[0], queue[i] = queue[i], queue[0]
	e.queueInv[key] = queue

	e.logger.Debug("Block request timed out", "block", key, "retry", queue[0])
	e.requestBlocks(queue[0], []chain.Key{key}, true)
	e.armInvTimeout(key)
}

func (e *Engine) armChunkTimeout(ck wire.ChunkKey, blockSize int) {
	n := wire.NumChunks(blockSize, e.cfg.ChunkSize)
	e.chunkTimeouts[ck] = e.sched.Schedule(e.cfg.InvTimeout/float64(n), func() {
		e.chunkTimeout(ck)
	})
}

func (e *Engine) cancelChunkTimeout(ck wire.ChunkKey) {
	if ev, ok := e.chunkTimeouts[ck]; ok {
		e.sched.Cancel(ev)
		delete(e.chunkTimeouts, ck)
	}
}

// chunkTimeout puts the chunk back in the queue so another peer is asked.
func (e *Engine) chunkTimeout(ck wire.ChunkKey) {
	if e.stopped {
		return
	}
	e.stats.ChunkTimeouts++
	delete(e.chunkTimeouts, ck)

	queue, ok := e.queueChunks[ck.Block]
	if !ok || e.Known(ck.Block) {
		return
	}
	e.logger.Debug("Chunk request timed out", "chunk", ck)
	e.queueChunks[ck.Block] = append(queue, ck.Chunk)
}
