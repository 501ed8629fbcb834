package node

import (
	"math"
	"slices"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/transport"
	"github.com/shreekarashastry/blocksim/wire"
)

func (e *Engine) handle(from chain.NodeID, msg wire.Message) {
	e.logger.Trace("Received message", "kind", msg.Kind(), "peer", from)
	if msg.Kind() != wire.BlockTag && msg.Kind() != wire.ChunkTag {
		e.stats.addReceived(msg.Kind(), wire.ModeledSize(msg, e.cfg.ChunkSize))
	}
	switch m := msg.(type) {
	case *wire.Inv:
		e.handleInv(from, m)
	case *wire.ExtInv:
		e.handleExtInv(from, m)
	case *wire.GetHeaders:
		e.handleGetHeaders(from, m)
	case *wire.ExtGetHeaders:
		e.handleExtGetHeaders(from, m)
	case *wire.GetData:
		e.handleGetData(from, m)
	case *wire.ExtGetData:
		e.handleExtGetData(from, m)
	case *wire.Headers:
		e.handleHeaders(from, m)
	case *wire.ExtHeaders:
		e.handleExtHeaders(from, m)
	case *wire.Block:
		e.handleBlock(from, m)
	case *wire.Chunk:
		e.handleChunk(from, m)
	default:
		e.logger.Warn("Unhandled message", "kind", msg.Kind(), "peer", from)
	}
}

func (e *Engine) handleInv(from chain.NodeID, m *wire.Inv) {
	var request []chain.Key
	for _, key := range m.Keys {
		if e.Known(key) {
			continue
		}
		if _, requested := e.invTimeouts[key]; !requested {
			request = append(request, key)
			e.armInvTimeout(key)
		}
		e.queueInv[key] = append(e.queueInv[key], from)
	}
	e.requestBlocks(from, request, true)
}

func (e *Engine) handleExtInv(from chain.NodeID, m *wire.ExtInv) {
	var (
		headers []chain.Key
		chunks  []wire.ChunkKey
	)
	for _, entry := range m.Entries {
		key := entry.Key
		if e.Known(key) {
			continue
		}
		e.initChunks(key, entry.Size)
		if len(e.queueChunks[key]) == 0 {
			continue
		}
		if !e.OnlyHeaders(key) {
			headers = append(headers, key)
		}
		if c, ok := e.pickChunk(key, entry.Availability); ok {
			ck := wire.ChunkKey{Block: key, Chunk: c}
			chunks = append(chunks, ck)
			e.armChunkTimeout(ck, entry.Size)
			e.queueChunkPeers[key] = append(e.queueChunkPeers[key], from)
		}
	}
	if len(headers) > 0 {
		e.send(from, &wire.ExtGetHeaders{Keys: headers})
	}
	e.requestChunks(from, chunks)
}

func (e *Engine) handleGetHeaders(from chain.NodeID, m *wire.GetHeaders) {
	var headers []chain.Block
	for _, key := range m.Keys {
		if b, ok := e.heldBlock(key); ok {
			headers = append(headers, b)
		}
	}
	if len(headers) > 0 {
		e.send(from, &wire.Headers{Blocks: headers})
	}
}

func (e *Engine) handleExtGetHeaders(from chain.NodeID, m *wire.ExtGetHeaders) {
	var entries []wire.HeaderEntry
	for _, key := range m.Keys {
		b, ok := e.heldBlock(key)
		if !ok {
			b, ok = e.onlyHeaders[key]
		}
		if !ok {
			continue
		}
		entries = append(entries, wire.HeaderEntry{Header: b, Availability: e.availability(key, b.Size)})
	}
	if len(entries) > 0 {
		e.send(from, &wire.ExtHeaders{Entries: entries})
	}
}

func (e *Engine) handleGetData(from chain.NodeID, m *wire.GetData) {
	var blocks []chain.Block
	for _, key := range m.Keys {
		if !e.chain.HasBlockKey(key) {
			continue
		}
		b, _ := e.chain.ReturnBlock(key.Height, key.MinerID)
		blocks = append(blocks, b)
	}
	if len(blocks) > 0 {
		e.sendPiped(from, &wire.Block{Blocks: blocks}, transport.ClassBlock)
	}
}

func (e *Engine) handleExtGetData(from chain.NodeID, m *wire.ExtGetData) {
	var (
		replies  []wire.ChunkData
		requests []wire.ChunkKey
	)
	for _, req := range m.Chunks {
		key := req.Chunk.Block
		header, serve := e.heldBlock(key)
		reciprocal := -1
		if !serve {
			var ok bool
			if header, ok = e.onlyHeaders[key]; !ok {
				continue
			}
			serve = e.holdsChunk(key, req.Chunk.Chunk)
			if c, ok := e.pickChunk(key, req.Availability); ok {
				reciprocal = c
				e.armChunkTimeout(wire.ChunkKey{Block: key, Chunk: c}, header.Size)
				e.queueChunkPeers[key] = append(e.queueChunkPeers[key], from)
			}
		}
		switch {
		case serve:
			reply := wire.ChunkData{Header: header, Chunk: req.Chunk.Chunk, Availability: e.availability(key, header.Size)}
			if reciprocal >= 0 {
				reply.RequestChunks = []int{reciprocal}
			}
			replies = append(replies, reply)
		case reciprocal >= 0:
			requests = append(requests, wire.ChunkKey{Block: key, Chunk: reciprocal})
		}
	}
	e.requestChunks(from, requests)
	if len(replies) > 0 {
		e.sendPiped(from, &wire.Chunk{Chunks: replies}, transport.ClassChunk)
	}
}

func (e *Engine) handleHeaders(from chain.NodeID, m *wire.Headers) {
	var (
		withHeaders []chain.Key
		dataOnly    []chain.Key
		bodies      []chain.Key
	)
	for _, b := range m.Blocks {
		b.TimeReceived = e.Now()
		b.ReceivedFrom = from
		key, parent := b.Key(), b.ParentKey()
		if !e.Known(key) {
			e.onlyHeaders[key] = b
		}

		if e.cfg.Protocol == SendHeaders && !e.Known(key) {
			if _, requested := e.invTimeouts[key]; !requested {
				bodies = append(bodies, key)
				e.armInvTimeout(key)
			}
			e.queueInv[key] = append(e.queueInv[key], from)
		}

		if e.Known(parent) {
			continue
		}
		fetchParent := e.cfg.Protocol == StandardProtocol || !slices.Contains(bodies, parent)
		if !fetchParent {
			continue
		}
		if _, requested := e.invTimeouts[parent]; !requested {
			if e.OnlyHeaders(parent) {
				dataOnly = append(dataOnly, parent)
			} else {
				withHeaders = append(withHeaders, parent)
			}
			e.armInvTimeout(parent)
		}
		e.queueInv[parent] = append(e.queueInv[parent], from)
	}
	e.requestBlocks(from, withHeaders, true)
	e.requestBlocks(from, append(dataOnly, bodies...), false)
}

func (e *Engine) handleExtHeaders(from chain.NodeID, m *wire.ExtHeaders) {
	var (
		headers []chain.Key
		chunks  []wire.ChunkKey
	)
	for _, entry := range m.Entries {
		b := entry.Header
		b.TimeReceived = e.Now()
		b.ReceivedFrom = from
		key, parent := b.Key(), b.ParentKey()
		if !e.OnlyHeaders(key) {
			e.onlyHeaders[key] = b
		}

		if !e.Known(key) {
			e.initChunks(key, b.Size)
			if len(e.queueChunks[key]) > 0 && !slices.Contains(e.queueChunkPeers[key], from) {
				if c, ok := e.pickChunk(key, entry.Availability); ok {
					ck := wire.ChunkKey{Block: key, Chunk: c}
					chunks = append(chunks, ck)
					e.armChunkTimeout(ck, b.Size)
					e.queueChunkPeers[key] = append(e.queueChunkPeers[key], from)
				}
			}
		}

		if e.Known(parent) {
			continue
		}
		if _, pending := e.queueChunks[parent]; !pending || !slices.Contains(e.queueChunkPeers[parent], from) {
			if !slices.Contains(headers, parent) {
				headers = append(headers, parent)
			}
		}
	}
	if len(headers) > 0 {
		e.send(from, &wire.ExtGetHeaders{Keys: headers})
	}
	e.requestChunks(from, chunks)
}

func (e *Engine) receiveDelay(from chain.NodeID, size int, c transport.Class) float64 {
	wait := e.link.Receive.Reserve(e.Now(), c, float64(size)/e.cfg.DownloadRate)
	rate := math.Min(e.cfg.DownloadRate, e.uploadRateOf(from))
	return wait + float64(size)/rate
}

func (e *Engine) handleBlock(from chain.NodeID, m *wire.Block) {
	size := wire.TransferSize(m, e.cfg.ChunkSize)
	e.stats.addReceived(wire.BlockTag, size)
	class := transport.ClassBlock
	if m.Compressed {
		class = transport.ClassCompressed
	}
	delay := e.receiveDelay(from, size, class)
	e.logger.Trace("Receiving block message", "peer", from, "bytes", size, "at", e.Now()+delay)
	e.sched.Schedule(delay, func() {
		e.receivedBlockMessage(from, m.Blocks)
	})
}

func (e *Engine) handleChunk(from chain.NodeID, m *wire.Chunk) {
	e.stats.addReceived(wire.ChunkTag, wire.ModeledSize(m, e.cfg.ChunkSize))
	size := wire.TransferSize(m, e.cfg.ChunkSize)
	delay := e.receiveDelay(from, size, transport.ClassChunk)
	e.logger.Trace("Receiving chunk message", "peer", from, "bytes", size, "at", e.Now()+delay)
	e.sched.Schedule(delay, func() {
		e.receivedChunkMessage(from, m.Chunks)
	})
}

func (e *Engine) receivedBlockMessage(from chain.NodeID, blocks []chain.Block) {
	if e.stopped {
		return
	}
	for _, b := range blocks {
		key := b.Key()
		e.clearChunkState(key)

		parent := b.ParentKey()
		if !e.Known(parent) && !e.OnlyHeaders(parent) {
			e.logger.Debug("Discarded block with unknown parent", "block", key, "peer", from)
			e.clearInvRequest(key)
			continue
		}
		b.TimeReceived = e.Now()
		b.ReceivedFrom = from
		e.ReceiveBlock(b)
	}
}
