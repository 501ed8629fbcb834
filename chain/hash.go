package chain

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"lukechampine.com/blake3"
)

const HashLength = 32

type Hash [HashLength]byte

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}

	copy(h[HashLength-len(b):], b)
}

func (h Hash) String() string {
	enc := make([]byte, len(h[:])*2+2)
	copy(enc, "0x")
	hex.Encode(enc[2:], h[:])
	return string(enc)
}

// TerminalString returns a shortened form used in log lines.
func (h Hash) TerminalString() string {
	return hex.EncodeToString(h[:3]) + ".." + hex.EncodeToString(h[29:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

// Hash returns the blake3 digest of the fields that identify the block in
// the fork tree. Timing fields are local to a node and do not take part.
func (b Block) Hash() (hash Hash) {
	var data [40]byte
	binary.BigEndian.PutUint64(data[0:], uint64(int64(b.Height)))
	binary.BigEndian.PutUint64(data[8:], uint64(int64(b.MinerID)))
	binary.BigEndian.PutUint64(data[16:], uint64(int64(b.ParentMinerID)))
	binary.BigEndian.PutUint64(data[24:], uint64(int64(b.Size)))
	binary.BigEndian.PutUint64(data[32:], math.Float64bits(b.TimeCreated))
	sum := blake3.Sum256(data[:])
	hash.SetBytes(sum[:])
	return hash
}
