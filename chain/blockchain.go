package chain

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const c_blockCacheSize = 10000

// Blockchain stores every validated block by height. Siblings at the same
// height are forks; nothing is ever removed from a row. Blocks whose parent
// is unknown wait in the orphan pool.
type Blockchain struct {
	rows        [][]Block
	orphans     []Block
	totalBlocks int
	staleBlocks int
	blocks      *lru.Cache[Key, Block]
}

func NewBlockchain() *Blockchain {
	cache, err := lru.New[Key, Block](c_blockCacheSize)
	if err != nil {
		panic(err)
	}
	bc := &Blockchain{
		rows:   make([][]Block, 0, 64),
		blocks: cache,
	}
	bc.AddBlock(GenesisBlock())
	return bc
}

// Height returns the height of the top block.
func (bc *Blockchain) Height() int {
	return bc.TopBlock().Height
}

// TopBlock returns the first inserted block of the highest row.
func (bc *Blockchain) TopBlock() Block {
	return bc.rows[len(bc.rows)-1][0]
}

func (bc *Blockchain) TotalBlocks() int {
	return bc.totalBlocks
}

func (bc *Blockchain) StaleBlocks() int {
	return bc.staleBlocks
}

func (bc *Blockchain) Orphans() []Block {
	out := make([]Block, len(bc.orphans))
	copy(out, bc.orphans)
	return out
}

// HasBlock reports whether the block with the given key has been inserted.
func (bc *Blockchain) HasBlock(height, minerID int) bool {
	_, ok := bc.lookup(Key{Height: height, MinerID: minerID})
	return ok
}

func (bc *Blockchain) HasBlockKey(key Key) bool {
	_, ok := bc.lookup(key)
	return ok
}

func (bc *Blockchain) lookup(key Key) (Block, bool) {
	if key.Height < 0 || key.Height >= len(bc.rows) {
		return Block{}, false
	}
	if b, ok := bc.blocks.Get(key); ok {
		return b, true
	}
	for _, b := range bc.rows[key.Height] {
		if b.MinerID == key.MinerID {
			bc.blocks.Add(key, b)
			return b, true
		}
	}
	return Block{}, false
}

// ReturnBlock looks the block up in the chain and then in the orphan pool.
func (bc *Blockchain) ReturnBlock(height, minerID int) (Block, bool) {
	key := Key{Height: height, MinerID: minerID}
	if b, ok := bc.lookup(key); ok {
		return b, true
	}
	for _, b := range bc.orphans {
		if b.Key() == key {
			return b, true
		}
	}
	return Block{}, false
}

func (bc *Blockchain) IsOrphan(b Block) bool {
	return bc.IsOrphanKey(b.Key())
}

func (bc *Blockchain) IsOrphanKey(key Key) bool {
	for _, o := range bc.orphans {
		if o.Key() == key {
			return true
		}
	}
	return false
}

// ParentOf returns the inserted parent of b, if any.
func (bc *Blockchain) ParentOf(b Block) (Block, bool) {
	return bc.lookup(b.ParentKey())
}

// ChildrenOf returns the inserted children of b.
func (bc *Blockchain) ChildrenOf(b Block) []Block {
	if b.Height+1 >= len(bc.rows) {
		return nil
	}
	var children []Block
	for _, c := range bc.rows[b.Height+1] {
		if b.IsParent(c) {
			children = append(children, c)
		}
	}
	return children
}

// OrphanChildrenOf returns the orphans waiting for b.
func (bc *Blockchain) OrphanChildrenOf(b Block) []Block {
	var children []Block
	for _, o := range bc.orphans {
		if b.IsParent(o) {
			children = append(children, o)
		}
	}
	return children
}

// AddBlock inserts a validated block. A block landing in an occupied row is
// counted as stale; both siblings are kept.
func (bc *Blockchain) AddBlock(b Block) {
	if len(bc.rows) == 0 || b.Height > bc.Height() {
		for len(bc.rows) < b.Height {
			bc.rows = append(bc.rows, nil)
		}
		bc.rows = append(bc.rows, []Block{b})
	} else {
		// If the height row already has a block this one is a fork sibling
		if len(bc.rows[b.Height]) > 0 {
			bc.staleBlocks++
		}
		bc.rows[b.Height] = append(bc.rows[b.Height], b)
	}
	bc.blocks.Add(b.Key(), b)
	bc.totalBlocks++
}

func (bc *Blockchain) AddOrphan(b Block) {
	bc.orphans = append(bc.orphans, b)
}

// RemoveOrphan drops the first orphan equal to b.
func (bc *Blockchain) RemoveOrphan(b Block) {
	for i, o := range bc.orphans {
		if o.Equal(b) {
			bc.orphans = append(bc.orphans[:i], bc.orphans[i+1:]...)
			return
		}
	}
}

// BlocksInForks returns the number of blocks in rows that hold more than one
// block.
func (bc *Blockchain) BlocksInForks() int {
	count := 0
	for _, row := range bc.rows {
		if len(row) > 1 {
			count += len(row)
		}
	}
	return count
}

// LongestFork returns the length of the longest run of consecutive forked
// rows linked through parentMinerId.
func (bc *Blockchain) LongestFork() int {
	forks := make(map[int]int)
	maxSize := 0
	closeAll := func() {
		for _, length := range forks {
			if length > maxSize {
				maxSize = length
			}
		}
		forks = make(map[int]int)
	}

	for _, row := range bc.rows {
		switch {
		case len(row) > 1 && len(forks) == 0:
			for _, b := range row {
				forks[b.MinerID] = 1
			}
		case len(row) > 1:
			extended := make(map[int]bool)
			for _, b := range row {
				if length, ok := forks[b.ParentMinerID]; ok {
					forks[b.MinerID] = length + 1
					if b.MinerID != b.ParentMinerID {
						delete(forks, b.ParentMinerID)
					}
					extended[b.MinerID] = true
				} else {
					forks[b.MinerID] = 1
				}
			}
			for minerID, length := range forks {
				if !extended[minerID] {
					if length > maxSize {
						maxSize = length
					}
					delete(forks, minerID)
				}
			}
		case len(row) == 1 && len(forks) > 0:
			closeAll()
		}
	}
	closeAll()
	return maxSize
}

// ForkMetrics returns the longest fork and the number of blocks that took
// part in any fork.
func (bc *Blockchain) ForkMetrics() (longest int, inForks int) {
	return bc.LongestFork(), bc.BlocksInForks()
}

func (bc *Blockchain) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "m_totalBlocks = %d\n", bc.totalBlocks)
	fmt.Fprintf(&sb, "m_staleBlocks = %d\n", bc.staleBlocks)
	for _, row := range bc.rows {
		for _, b := range row {
			sb.WriteString(b.String())
			sb.WriteByte('\n')
		}
	}
	if len(bc.orphans) > 0 {
		sb.WriteString("Orphans:\n")
		for _, b := range bc.orphans {
			sb.WriteString(b.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
