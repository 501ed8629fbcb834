package transport

import (
	"fmt"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/sched"
)

// Receiver consumes raw bytes arriving from a peer.
type Receiver interface {
	Deliver(from chain.NodeID, data []byte)
}

// Network moves framed bytes between registered nodes through scheduler
// events. It models no latency of its own; callers pass the queuing delay
// computed from their pipes.
type Network struct {
	sched     *sched.Scheduler
	receivers map[chain.NodeID]Receiver

	sentFrames uint64
	sentBytes  uint64
}

func NewNetwork(s *sched.Scheduler) *Network {
	return &Network{
		sched:     s,
		receivers: make(map[chain.NodeID]Receiver),
	}
}

// Register attaches r as the endpoint for id.
func (n *Network) Register(id chain.NodeID, r Receiver) {
	if _, ok := n.receivers[id]; ok {
		panic(fmt.Sprintf("transport: node %d registered twice", id))
	}
	n.receivers[id] = r
}

// Send delivers frame from one node to another after delay seconds.
func (n *Network) Send(from, to chain.NodeID, frame []byte, delay float64) {
	r, ok := n.receivers[to]
	if !ok {
		panic(fmt.Sprintf("transport: node %d sends to unknown node %d", from, to))
	}
	data := make([]byte, len(frame))
	copy(data, frame)
	n.sentFrames++
	n.sentBytes += uint64(len(data))
	n.sched.Schedule(delay, func() {
		r.Deliver(from, data)
	})
}

// Stats returns the number of frames and encoded bytes handed to the network.
func (n *Network) Stats() (frames, bytes uint64) {
	return n.sentFrames, n.sentBytes
}
