package node

import (
	"fmt"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/transport"
	"github.com/shreekarashastry/blocksim/wire"
)

func (e *Engine) encode(msg wire.Message) []byte {
	frame, err := wire.Encode(msg)
	if err != nil {
		panic(fmt.Sprintf("node %d: %v", e.id, err))
	}
	return frame
}

// send puts a control message on the wire immediately.
func (e *Engine) send(to chain.NodeID, msg wire.Message) {
	e.stats.addSent(msg.Kind(), wire.ModeledSize(msg, e.cfg.ChunkSize))
	e.logger.Trace("Sending message", "kind", msg.Kind(), "peer", to)
	e.net.Send(e.id, to, e.encode(msg), 0)
}

// sendPiped queues a BLOCK or CHUNK message on the send pipe of class c and
// puts it on the wire once the pipe is free.
func (e *Engine) sendPiped(to chain.NodeID, msg wire.Message, c transport.Class) {
	size := wire.TransferSize(msg, e.cfg.ChunkSize)
	wait := e.link.Send.Reserve(e.Now(), c, float64(size)/e.cfg.UploadRate)
	e.stats.addSent(msg.Kind(), wire.ModeledSize(msg, e.cfg.ChunkSize))
	e.logger.Trace("Queued transfer", "kind", msg.Kind(), "peer", to, "bytes", size, "start", e.Now()+wait)
	e.net.Send(e.id, to, e.encode(msg), wait)
}

// announcement builds the advertisement for blocks this node holds in full.
func (e *Engine) announcement(blocks []chain.Block) wire.Message {
	switch {
	case !e.cfg.BlockTorrent && e.cfg.Protocol == StandardProtocol:
		keys := make([]chain.Key, len(blocks))
		for i, b := range blocks {
			keys[i] = b.Key()
		}
		return &wire.Inv{Keys: keys}
	case !e.cfg.BlockTorrent:
		return &wire.Headers{Blocks: blocks}
	case e.cfg.Protocol == StandardProtocol:
		entries := make([]wire.InvEntry, len(blocks))
		for i, b := range blocks {
			entries[i] = wire.InvEntry{Key: b.Key(), Size: b.Size, Availability: wire.Availability{FullBlock: true}}
		}
		return &wire.ExtInv{Entries: entries}
	default:
		entries := make([]wire.HeaderEntry, len(blocks))
		for i, b := range blocks {
			entries[i] = wire.HeaderEntry{Header: b, Availability: wire.Availability{FullBlock: true}}
		}
		return &wire.ExtHeaders{Entries: entries}
	}
}

// Advertise announces blocks to every peer except one, using INV or HEADERS
// (or their chunked forms when BlockTorrent is on).
func (e *Engine) Advertise(blocks []chain.Block, except chain.NodeID) {
	if len(blocks) == 0 {
		return
	}
	msg := e.announcement(blocks)
	for _, p := range e.peers {
		if p.ID == except {
			continue
		}
		e.send(p.ID, msg)
	}
}

// AdvertiseTo announces blocks to a single peer.
func (e *Engine) AdvertiseTo(blocks []chain.Block, to chain.NodeID) {
	if len(blocks) == 0 {
		return
	}
	e.send(to, e.announcement(blocks))
}

// PushBlocks sends blocks unsolicited to a peer through the send pipe. A
// compressed push carries the relay-network encoding.
func (e *Engine) PushBlocks(blocks []chain.Block, to chain.NodeID, compressed bool) {
	if len(blocks) == 0 {
		return
	}
	class := transport.ClassBlock
	if compressed {
		class = transport.ClassCompressed
	}
	e.sendPiped(to, &wire.Block{Blocks: blocks, Compressed: compressed}, class)
}

// advertiseFirstChunk re-announces a block as soon as its first chunk arrived.
func (e *Engine) advertiseFirstChunk(b chain.Block) {
	key := b.Key()
	avail := e.availability(key, b.Size)

	var msg wire.Message
	switch {
	case e.cfg.Protocol == StandardProtocol:
		msg = &wire.ExtInv{Entries: []wire.InvEntry{{Key: key, Size: b.Size, Availability: avail}}}
	default:
		msg = &wire.ExtHeaders{Entries: []wire.HeaderEntry{{Header: b, Availability: avail}}}
	}
	for _, p := range e.peers {
		if p.ID == b.ReceivedFrom {
			continue
		}
		e.send(p.ID, msg)
	}
}

func (e *Engine) requestBlocks(to chain.NodeID, keys []chain.Key, withHeaders bool) {
	if len(keys) == 0 {
		return
	}
	if withHeaders {
		e.send(to, &wire.GetHeaders{Keys: keys})
	}
	e.send(to, &wire.GetData{Keys: keys})
}

func (e *Engine) requestChunks(to chain.NodeID, chunks []wire.ChunkKey) {
	if len(chunks) == 0 {
		return
	}
	reqs := make([]wire.ChunkRequest, len(chunks))
	for i, c := range chunks {
		reqs[i] = wire.ChunkRequest{
			Chunk:        c,
			Availability: wire.Availability{AvailableChunks: append([]int(nil), e.receivedChunks[c.Block]...)},
		}
	}
	e.send(to, &wire.ExtGetData{Chunks: reqs})
}
