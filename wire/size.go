package wire

import (
	"fmt"
	"math"
)

// Modeled on-the-wire sizes in bytes. The simulator accounts traffic with
// these numbers rather than with the length of the encoded frames.
const (
	MessageHeaderSize = 90
	CountSize         = 4
	InventorySize     = 36
	GetHeadersSize    = 72
	HeaderSize        = 81
	BlockHeaderSize   = 81
	AverageTxSize     = 522.4
	TxIndexSize       = 2

	extInvEntryOverhead     = 5 // fullBlock flag + number of chunks
	extHeaderEntryOverhead  = 1 // fullBlock flag
	extGetDataChunkOverhead = 6 // fullBlock flag + number of chunks + requested chunk
	chunkEntryOverhead      = 2 // requested chunk + fullBlock flag
)

// NumChunks returns how many chunks a block of the given size splits into.
func NumChunks(blockSize, chunkSize int) int {
	if chunkSize <= 0 {
		panic(fmt.Sprintf("wire: invalid chunk size %d", chunkSize))
	}
	return int(math.Ceil(float64(blockSize) / float64(chunkSize)))
}

// ChunkBytes returns the payload of chunk i: chunkSize, or the remainder for
// the last chunk.
func ChunkBytes(blockSize, chunk, chunkSize int) int {
	if chunk == NumChunks(blockSize, chunkSize)-1 && blockSize%chunkSize > 0 {
		return blockSize % chunkSize
	}
	return chunkSize
}

// CompressedBlockSize is the size of a relay-network encoding of a block:
// the header plus a short index per transaction.
func CompressedBlockSize(blockSize int) int {
	txs := int(float64(blockSize-BlockHeaderSize) / AverageTxSize)
	return BlockHeaderSize + TxIndexSize*txs
}

func availabilityBytes(a Availability) int {
	if a.FullBlock {
		return 0
	}
	return len(a.AvailableChunks)
}

// TransferSize is the number of bytes a message occupies on a bandwidth
// pipe. Only BLOCK and CHUNK carry payload; everything else is instantaneous.
func TransferSize(m Message, chunkSize int) int {
	switch msg := m.(type) {
	case *Block:
		size := MessageHeaderSize
		for _, b := range msg.Blocks {
			if msg.Compressed {
				size += CompressedBlockSize(b.Size)
			} else {
				size += b.Size
			}
		}
		return size
	case *Chunk:
		size := MessageHeaderSize
		for _, c := range msg.Chunks {
			size += ChunkBytes(c.Header.Size, c.Chunk, chunkSize)
		}
		return size
	default:
		return 0
	}
}

// ModeledSize returns the bytes accounted for m in the traffic counters.
func ModeledSize(m Message, chunkSize int) int {
	switch msg := m.(type) {
	case *Inv:
		return MessageHeaderSize + CountSize + len(msg.Keys)*InventorySize
	case *GetHeaders:
		return MessageHeaderSize + GetHeadersSize
	case *Headers:
		return MessageHeaderSize + CountSize + len(msg.Blocks)*HeaderSize
	case *GetData:
		return MessageHeaderSize + CountSize + len(msg.Keys)*InventorySize
	case *Block:
		return TransferSize(msg, chunkSize)
	case *ExtInv:
		size := MessageHeaderSize + CountSize + len(msg.Entries)*InventorySize
		for _, e := range msg.Entries {
			size += extInvEntryOverhead + availabilityBytes(e.Availability)
		}
		return size
	case *ExtGetHeaders:
		return MessageHeaderSize + GetHeadersSize
	case *ExtHeaders:
		size := MessageHeaderSize + CountSize + len(msg.Entries)*HeaderSize
		for _, e := range msg.Entries {
			size += extHeaderEntryOverhead + availabilityBytes(e.Availability)
		}
		return size
	case *ExtGetData:
		size := MessageHeaderSize + CountSize + len(msg.Chunks)*InventorySize
		for _, c := range msg.Chunks {
			size += extGetDataChunkOverhead + availabilityBytes(c.Availability)
		}
		return size
	case *Chunk:
		size := MessageHeaderSize
		for _, c := range msg.Chunks {
			size += ChunkBytes(c.Header.Size, c.Chunk, chunkSize) + chunkEntryOverhead + availabilityBytes(c.Availability)
			if len(c.RequestChunks) > 0 {
				size += len(c.RequestChunks) - 1
			}
		}
		return size
	default:
		return 0
	}
}
