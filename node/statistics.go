package node

import (
	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/wire"
)

// Statistics are the per-node counters reported at the end of a run.
type Statistics struct {
	NodeID chain.NodeID `codec:"nodeId"`

	MeanBlockReceiveTime     float64 `codec:"meanBlockReceiveTime"`
	MeanBlockPropagationTime float64 `codec:"meanBlockPropagationTime"`
	MeanBlockSize            float64 `codec:"meanBlockSize"`
	TotalBlocks              int     `codec:"totalBlocks"`
	StaleBlocks              int     `codec:"staleBlocks"`

	Miner                        int     `codec:"miner"`
	MinerGeneratedBlocks         int     `codec:"minerGeneratedBlocks"`
	MinerAverageBlockGenInterval float64 `codec:"minerAverageBlockGenInterval"`
	MinerAverageBlockSize        float64 `codec:"minerAverageBlockSize"`
	HashRate                     float64 `codec:"hashRate"`
	AttackSuccess                int     `codec:"attackSuccess"`
	MinedBlocksInMainChain       int     `codec:"minedBlocksInMainChain"`

	InvReceivedBytes           int `codec:"invReceivedBytes"`
	InvSentBytes               int `codec:"invSentBytes"`
	GetHeadersReceivedBytes    int `codec:"getHeadersReceivedBytes"`
	GetHeadersSentBytes        int `codec:"getHeadersSentBytes"`
	HeadersReceivedBytes       int `codec:"headersReceivedBytes"`
	HeadersSentBytes           int `codec:"headersSentBytes"`
	GetDataReceivedBytes       int `codec:"getDataReceivedBytes"`
	GetDataSentBytes           int `codec:"getDataSentBytes"`
	BlockReceivedBytes         int `codec:"blockReceivedBytes"`
	BlockSentBytes             int `codec:"blockSentBytes"`
	ExtInvReceivedBytes        int `codec:"extInvReceivedBytes"`
	ExtInvSentBytes            int `codec:"extInvSentBytes"`
	ExtGetHeadersReceivedBytes int `codec:"extGetHeadersReceivedBytes"`
	ExtGetHeadersSentBytes     int `codec:"extGetHeadersSentBytes"`
	ExtHeadersReceivedBytes    int `codec:"extHeadersReceivedBytes"`
	ExtHeadersSentBytes        int `codec:"extHeadersSentBytes"`
	ExtGetDataReceivedBytes    int `codec:"extGetDataReceivedBytes"`
	ExtGetDataSentBytes        int `codec:"extGetDataSentBytes"`
	ChunkReceivedBytes         int `codec:"chunkReceivedBytes"`
	ChunkSentBytes             int `codec:"chunkSentBytes"`

	LongestFork   int `codec:"longestFork"`
	BlocksInForks int `codec:"blocksInForks"`
	Connections   int `codec:"connections"`
	BlockTimeouts int `codec:"blockTimeouts"`
	ChunkTimeouts int `codec:"chunkTimeouts"`
}

func (s *Statistics) counters(kind wire.Kind) (received, sent *int) {
	switch kind {
	case wire.InvTag:
		return &s.InvReceivedBytes, &s.InvSentBytes
	case wire.GetHeadersTag:
		return &s.GetHeadersReceivedBytes, &s.GetHeadersSentBytes
	case wire.HeadersTag:
		return &s.HeadersReceivedBytes, &s.HeadersSentBytes
	case wire.GetDataTag:
		return &s.GetDataReceivedBytes, &s.GetDataSentBytes
	case wire.BlockTag:
		return &s.BlockReceivedBytes, &s.BlockSentBytes
	case wire.ExtInvTag:
		return &s.ExtInvReceivedBytes, &s.ExtInvSentBytes
	case wire.ExtGetHeadersTag:
		return &s.ExtGetHeadersReceivedBytes, &s.ExtGetHeadersSentBytes
	case wire.ExtHeadersTag:
		return &s.ExtHeadersReceivedBytes, &s.ExtHeadersSentBytes
	case wire.ExtGetDataTag:
		return &s.ExtGetDataReceivedBytes, &s.ExtGetDataSentBytes
	case wire.ChunkTag:
		return &s.ChunkReceivedBytes, &s.ChunkSentBytes
	}
	return nil, nil
}

func (s *Statistics) addReceived(kind wire.Kind, n int) {
	if received, _ := s.counters(kind); received != nil {
		*received += n
	}
}

func (s *Statistics) addSent(kind wire.Kind, n int) {
	if _, sent := s.counters(kind); sent != nil {
		*sent += n
	}
}

// TotalSentBytes sums the modeled bytes of every message kind sent.
func (s *Statistics) TotalSentBytes() int {
	return s.InvSentBytes + s.GetHeadersSentBytes + s.HeadersSentBytes + s.GetDataSentBytes +
		s.BlockSentBytes + s.ExtInvSentBytes + s.ExtGetHeadersSentBytes + s.ExtHeadersSentBytes +
		s.ExtGetDataSentBytes + s.ChunkSentBytes
}

// TotalReceivedBytes sums the modeled bytes of every message kind received.
func (s *Statistics) TotalReceivedBytes() int {
	return s.InvReceivedBytes + s.GetHeadersReceivedBytes + s.HeadersReceivedBytes + s.GetDataReceivedBytes +
		s.BlockReceivedBytes + s.ExtInvReceivedBytes + s.ExtGetHeadersReceivedBytes + s.ExtHeadersReceivedBytes +
		s.ExtGetDataReceivedBytes + s.ChunkReceivedBytes
}
