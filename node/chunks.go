package node

import (
	"slices"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/transport"
	"github.com/shreekarashastry/blocksim/wire"
)

// initChunks queues every chunk of a block the first time it is announced.
func (e *Engine) initChunks(key chain.Key, size int) {
	if _, ok := e.queueChunks[key]; ok {
		return
	}
	n := wire.NumChunks(size, e.cfg.ChunkSize)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !slices.Contains(e.receivedChunks[key], i) {
			queue = append(queue, i)
		}
	}
	e.queueChunks[key] = queue
}

// pickChunk takes a random queued chunk that the peer advertises.
func (e *Engine) pickChunk(key chain.Key, avail wire.Availability) (int, bool) {
	queue := e.queueChunks[key]
	var candidates []int
	if avail.FullBlock {
		candidates = queue
	} else {
		for _, c := range avail.AvailableChunks {
			if slices.Contains(queue, c) {
				candidates = append(candidates, c)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	c := candidates[e.rand.Intn(len(candidates))]
	e.queueChunks[key] = removeChunk(queue, c)
	return c, true
}

func removeChunk(queue []int, c int) []int {
	if i := slices.Index(queue, c); i >= 0 {
		return slices.Delete(queue, i, i+1)
	}
	return queue
}

func removePeer(peers []chain.NodeID, id chain.NodeID) []chain.NodeID {
	if i := slices.Index(peers, id); i >= 0 {
		return slices.Delete(peers, i, i+1)
	}
	return peers
}

// availability describes which chunks of a block this node can serve.
func (e *Engine) availability(key chain.Key, size int) wire.Availability {
	if _, ok := e.heldBlock(key); ok {
		return wire.Availability{FullBlock: true}
	}
	received := e.receivedChunks[key]
	if len(received) == wire.NumChunks(size, e.cfg.ChunkSize) {
		return wire.Availability{FullBlock: true}
	}
	return wire.Availability{AvailableChunks: append([]int(nil), received...)}
}

func (e *Engine) holdsChunk(key chain.Key, c int) bool {
	if _, ok := e.heldBlock(key); ok {
		return true
	}
	return e.OnlyHeaders(key) && slices.Contains(e.receivedChunks[key], c)
}

func (e *Engine) clearChunkState(key chain.Key) {
	delete(e.onlyHeaders, key)
	delete(e.queueChunks, key)
	delete(e.queueChunkPeers, key)
	delete(e.receivedChunks, key)
	for ck, ev := range e.chunkTimeouts {
		if ck.Block == key {
			e.sched.Cancel(ev)
			delete(e.chunkTimeouts, ck)
		}
	}
}

func (e *Engine) receivedChunkMessage(from chain.NodeID, chunks []wire.ChunkData) {
	if e.stopped {
		return
	}
	var (
		replies  []wire.ChunkData
		requests []wire.ChunkKey
	)
	for _, data := range chunks {
		b := data.Header
		b.TimeReceived = e.Now()
		b.ReceivedFrom = from
		key := b.Key()
		e.cancelChunkTimeout(wire.ChunkKey{Block: key, Chunk: data.Chunk})

		next := -1
		if !e.Known(key) {
			if !e.OnlyHeaders(key) {
				e.onlyHeaders[key] = b
			}
			e.queueChunkPeers[key] = removePeer(e.queueChunkPeers[key], from)
			if q, ok := e.queueChunks[key]; ok {
				e.queueChunks[key] = removeChunk(q, data.Chunk)
			}
			if !slices.Contains(e.receivedChunks[key], data.Chunk) {
				e.receivedChunks[key] = append(e.receivedChunks[key], data.Chunk)
				if len(e.receivedChunks[key]) == 1 && e.cfg.SPV {
					e.advertiseFirstChunk(b)
				}
			}

			if len(e.receivedChunks[key]) == wire.NumChunks(b.Size, e.cfg.ChunkSize) {
				parent := b.ParentKey()
				if e.Known(parent) || e.OnlyHeaders(parent) {
					e.logger.Trace("Reassembled block from chunks", "block", key)
					e.ReceiveBlock(b)
				}
				e.clearChunkState(key)
			} else {
				e.initChunks(key, b.Size)
				if c, ok := e.pickChunk(key, data.Availability); ok {
					next = c
					e.armChunkTimeout(wire.ChunkKey{Block: key, Chunk: c}, b.Size)
					e.queueChunkPeers[key] = append(e.queueChunkPeers[key], from)
				}
			}
		}

		piggybacked := false
		for _, c := range data.RequestChunks {
			if !e.holdsChunk(key, c) {
				continue
			}
			reply := wire.ChunkData{Header: b, Chunk: c, Availability: e.availability(key, b.Size)}
			if next >= 0 && !piggybacked {
				reply.RequestChunks = []int{next}
				piggybacked = true
			}
			replies = append(replies, reply)
		}
		if next >= 0 && !piggybacked {
			requests = append(requests, wire.ChunkKey{Block: key, Chunk: next})
		}
	}
	e.requestChunks(from, requests)
	if len(replies) > 0 {
		e.sendPiped(from, &wire.Chunk{Chunks: replies}, transport.ClassChunk)
	}
}
