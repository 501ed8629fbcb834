package node

import (
	"fmt"

	"github.com/shreekarashastry/blocksim/chain"
)

// ProtocolType selects how new blocks are advertised to peers.
type ProtocolType int

const (
	StandardProtocol ProtocolType = iota
	SendHeaders
)

func (p ProtocolType) String() string {
	switch p {
	case StandardProtocol:
		return "STANDARD_PROTOCOL"
	case SendHeaders:
		return "SENDHEADERS"
	default:
		return fmt.Sprintf("PROTOCOL(%d)", int(p))
	}
}

const (
	DefaultChunkSize  = 100000
	DefaultInvTimeout = 20 * 60.0

	averageValidationTime = 0.174
	averageBlockSize      = 458263
)

// PeerInfo describes one neighbour. Rates are in bytes per second.
type PeerInfo struct {
	ID           chain.NodeID
	DownloadRate float64
	UploadRate   float64
	Miner        bool
}

// Config holds the per-node protocol parameters.
type Config struct {
	Protocol     ProtocolType
	BlockTorrent bool
	ChunkSize    int
	SPV          bool
	// InvTimeout is the time in seconds a node waits for a requested block
	// before asking another peer.
	InvTimeout float64

	DownloadRate float64
	UploadRate   float64
	Peers        []PeerInfo

	Seed int64
}

func (c *Config) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.InvTimeout <= 0 {
		c.InvTimeout = DefaultInvTimeout
	}
}

// ValidationTime models the time spent validating a block of the given size.
func ValidationTime(size int) float64 {
	return averageValidationTime * float64(size) / averageBlockSize
}
