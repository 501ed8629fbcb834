package chain

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID identifies a simulated node.
type NodeID int

// NoPeer marks a block that was not received from any peer.
const NoPeer NodeID = -1

const (
	GenesisMinerID       = -1
	GenesisParentMinerID = -2
)

// Key identifies a block by height and miner, written "height/minerId".
type Key struct {
	Height  int `codec:"h"`
	MinerID int `codec:"m"`
}

func (k Key) String() string {
	return strconv.Itoa(k.Height) + "/" + strconv.Itoa(k.MinerID)
}

// ParseKey parses the "height/minerId" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("invalid block key %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return Key{}, fmt.Errorf("invalid block height in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("invalid miner id in %q: %w", s, err)
	}
	return Key{Height: h, MinerID: m}, nil
}

type Block struct {
	Height        int     `codec:"height"`
	MinerID       int     `codec:"minerId"`
	ParentMinerID int     `codec:"parentBlockMinerId"`
	Size          int     `codec:"size"`
	TimeCreated   float64 `codec:"timeCreated"`
	TimeReceived  float64 `codec:"timeReceived"`
	ReceivedFrom  NodeID  `codec:"-"`
}

func GenesisBlock() Block {
	return Block{
		Height:        0,
		MinerID:       GenesisMinerID,
		ParentMinerID: GenesisParentMinerID,
		ReceivedFrom:  NoPeer,
	}
}

func (b Block) Key() Key {
	return Key{Height: b.Height, MinerID: b.MinerID}
}

// ParentKey returns the key the parent block must have.
func (b Block) ParentKey() Key {
	return Key{Height: b.Height - 1, MinerID: b.ParentMinerID}
}

// Equal compares blocks by identity, ignoring size and timing.
func (b Block) Equal(other Block) bool {
	return b.Height == other.Height && b.MinerID == other.MinerID
}

// IsParent reports whether b is the parent of other.
func (b Block) IsParent(other Block) bool {
	return other.Height == b.Height+1 && other.ParentMinerID == b.MinerID
}

// IsChild reports whether b is a child of other.
func (b Block) IsChild(other Block) bool {
	return other.IsParent(b)
}

// IsGenesis reports whether the block is the genesis block.
func (b Block) IsGenesis() bool {
	return b.Height == 0 && b.MinerID == GenesisMinerID
}

func (b Block) String() string {
	return fmt.Sprintf("{ Height: %v, MinerId: %v, ParentMinerId: %v, Size: %v, TimeCreated: %v, TimeReceived: %v, ReceivedFrom: %v }",
		b.Height, b.MinerID, b.ParentMinerID, b.Size, b.TimeCreated, b.TimeReceived, b.ReceivedFrom)
}
