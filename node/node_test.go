package node

import (
	"math"
	"slices"
	"testing"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/sched"
	"github.com/shreekarashastry/blocksim/transport"
	"github.com/shreekarashastry/blocksim/wire"
)

const testRate = 125000.0 // 1 Mbit/s in bytes per second

// newMesh connects n engines with each other.
func newMesh(n int, base Config) (*sched.Scheduler, []*Engine) {
	peers := make([][]int, n)
	for i := range peers {
		for j := 0; j < n; j++ {
			if j != i {
				peers[i] = append(peers[i], j)
			}
		}
	}
	return newNetwork(peers, base)
}

// newLine connects engine i with engine i+1.
func newLine(n int, base Config) (*sched.Scheduler, []*Engine) {
	peers := make([][]int, n)
	for i := 0; i+1 < n; i++ {
		peers[i] = append(peers[i], i+1)
		peers[i+1] = append(peers[i+1], i)
	}
	return newNetwork(peers, base)
}

// newNetwork starts one engine per entry of peers, linked as listed.
func newNetwork(peers [][]int, base Config) (*sched.Scheduler, []*Engine) {
	s := sched.New()
	net := transport.NewNetwork(s)
	engines := make([]*Engine, len(peers))
	for i, links := range peers {
		cfg := base
		cfg.DownloadRate, cfg.UploadRate = testRate, testRate
		cfg.Peers = nil
		for _, j := range links {
			cfg.Peers = append(cfg.Peers, PeerInfo{ID: chain.NodeID(j), DownloadRate: testRate, UploadRate: testRate})
		}
		engines[i] = New(chain.NodeID(i), cfg, s, net, nil)
	}
	for _, e := range engines {
		e.Start()
	}
	return s, engines
}

func mined(e *Engine, size int) chain.Block {
	top := e.Chain().TopBlock()
	b := chain.Block{
		Height:        top.Height + 1,
		MinerID:       int(e.ID()),
		ParentMinerID: top.MinerID,
		Size:          size,
		TimeCreated:   e.Now(),
		TimeReceived:  e.Now(),
		ReceivedFrom:  chain.NoPeer,
	}
	e.AddMinedBlock(b)
	return b
}

func TestInvGetDataPropagation(t *testing.T) {
	s, nodes := newMesh(2, Config{})
	miner, peer := nodes[0], nodes[1]

	b := mined(miner, 500000)
	miner.Advertise([]chain.Block{b}, chain.NoPeer)
	s.RunUntil(100)
	for _, e := range nodes {
		e.Stop()
	}

	if peer.Chain().Height() != 1 || !peer.Chain().HasBlockKey(b.Key()) {
		t.Fatalf("peer chain height = %d, want the mined block", peer.Chain().Height())
	}
	want := 500090.0 / testRate
	if got := peer.Stats().MeanBlockPropagationTime; math.Abs(got-want) > 1e-9 {
		t.Fatalf("propagation = %v, want %v", got, want)
	}
	if got := peer.Stats().InvReceivedBytes; got != 130 {
		t.Errorf("inv received = %d, want 130", got)
	}
	if got := peer.Stats().GetHeadersSentBytes; got != 162 {
		t.Errorf("get headers sent = %d, want 162", got)
	}
	if got := peer.Stats().BlockReceivedBytes; got != 500090 {
		t.Errorf("block received = %d, want 500090", got)
	}
	if miner.Stats().BlockSentBytes != peer.Stats().BlockReceivedBytes {
		t.Errorf("block sent %d != received %d", miner.Stats().BlockSentBytes, peer.Stats().BlockReceivedBytes)
	}
	if peer.PendingValidation() != 0 {
		t.Errorf("pending validation = %d", peer.PendingValidation())
	}
}

func TestSendHeadersPropagation(t *testing.T) {
	s, nodes := newMesh(2, Config{Protocol: SendHeaders})
	b := mined(nodes[0], 200000)
	nodes[0].Advertise([]chain.Block{b}, chain.NoPeer)
	s.RunUntil(100)

	if !nodes[1].Chain().HasBlockKey(b.Key()) {
		t.Fatal("block not propagated with SENDHEADERS")
	}
	if nodes[1].Stats().InvReceivedBytes != 0 {
		t.Errorf("unexpected INV traffic")
	}
	if nodes[1].Stats().HeadersReceivedBytes != 90+4+81 {
		t.Errorf("headers received = %d", nodes[1].Stats().HeadersReceivedBytes)
	}
	if nodes[1].OnlyHeaders(b.Key()) {
		t.Errorf("header entry not cleared after the body arrived")
	}
}

func TestChunkedPropagation(t *testing.T) {
	s, nodes := newMesh(3, Config{BlockTorrent: true})
	b := mined(nodes[0], 450000)
	nodes[0].Advertise([]chain.Block{b}, chain.NoPeer)
	s.RunUntil(200)

	for _, e := range nodes[1:] {
		if !e.Chain().HasBlockKey(b.Key()) {
			t.Fatalf("node %d did not reassemble the block", e.ID())
		}
		if e.Stats().BlockReceivedBytes != 0 {
			t.Errorf("node %d received a whole block", e.ID())
		}
		if e.Stats().ChunkReceivedBytes < 450000 {
			t.Errorf("node %d chunk bytes = %d", e.ID(), e.Stats().ChunkReceivedBytes)
		}
		if len(e.queueChunks) != 0 || len(e.receivedChunks) != 0 || len(e.chunkTimeouts) != 0 {
			t.Errorf("node %d kept chunk state", e.ID())
		}
	}
}

func TestOrphanValidatedAfterParent(t *testing.T) {
	s, nodes := newMesh(1, Config{})
	e := nodes[0]

	parent := chain.Block{Height: 1, MinerID: 7, ParentMinerID: chain.GenesisMinerID, Size: 1000}
	child := chain.Block{Height: 2, MinerID: 7, ParentMinerID: 7, Size: 1000}

	e.ReceiveBlock(child)
	s.RunUntil(10)
	if !e.Chain().IsOrphan(child) {
		t.Fatal("child not parked as orphan")
	}

	e.ReceiveBlock(parent)
	s.RunUntil(20)
	if e.Chain().Height() != 2 {
		t.Fatalf("height = %d, want 2", e.Chain().Height())
	}
	if len(e.Chain().Orphans()) != 0 {
		t.Fatalf("orphans left: %v", e.Chain().Orphans())
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	s, nodes := newMesh(2, Config{})
	frame, err := wire.Encode(&wire.Inv{Keys: []chain.Key{{Height: 1, MinerID: 0}}})
	if err != nil {
		t.Fatal(err)
	}
	nodes[1].Deliver(0, append([]byte("@@not-base64@@#"), frame...))
	s.RunUntil(1)

	if got := nodes[1].Stats().InvReceivedBytes; got != 130 {
		t.Fatalf("inv received = %d, want 130", got)
	}
	if got := nodes[1].Stats().GetDataSentBytes; got != 130 {
		t.Fatalf("get data sent = %d, want 130", got)
	}
}

func TestInvTimeoutAsksNextPeer(t *testing.T) {
	s, nodes := newMesh(3, Config{InvTimeout: 10})
	liar, receiver, holder := nodes[0], nodes[1], nodes[2]
	b := mined(holder, 100000)

	inv, err := wire.Encode(&wire.Inv{Keys: []chain.Key{b.Key()}})
	if err != nil {
		t.Fatal(err)
	}
	receiver.Deliver(liar.ID(), inv)
	receiver.Deliver(holder.ID(), inv)
	s.RunUntil(5)
	if receiver.Chain().HasBlockKey(b.Key()) {
		t.Fatal("block arrived from a peer that does not hold it")
	}

	s.RunUntil(100)
	if !receiver.Chain().HasBlockKey(b.Key()) {
		t.Fatal("block not fetched after the timeout")
	}
	if receiver.Stats().BlockTimeouts != 1 {
		t.Fatalf("block timeouts = %d, want 1", receiver.Stats().BlockTimeouts)
	}
}

func TestStoppedEngineDropsMessages(t *testing.T) {
	s, nodes := newMesh(2, Config{})
	nodes[1].Stop()
	b := mined(nodes[0], 1000)
	nodes[0].Advertise([]chain.Block{b}, chain.NoPeer)
	s.RunUntil(10)

	if nodes[1].Stats().InvReceivedBytes != 0 || nodes[1].Chain().Height() != 0 {
		t.Fatal("stopped engine processed a message")
	}
}

func TestValidationTime(t *testing.T) {
	if got := ValidationTime(458263); math.Abs(got-0.174) > 1e-12 {
		t.Fatalf("validation time = %v", got)
	}
}

func TestSPVAdvertisesAfterFirstChunk(t *testing.T) {
	for _, spv := range []bool{true, false} {
		s, nodes := newLine(3, Config{BlockTorrent: true, SPV: spv})
		relay, leaf := nodes[1], nodes[2]
		b := mined(nodes[0], 450000)
		nodes[0].Advertise([]chain.Block{b}, chain.NoPeer)

		// The relay holds some chunks but not the whole block yet.
		s.RunUntil(2)
		if relay.Chain().HasBlockKey(b.Key()) || len(relay.receivedChunks[b.Key()]) == 0 {
			t.Fatalf("spv=%v: relay state at 2s: height %d, chunks %v", spv, relay.Chain().Height(), relay.receivedChunks[b.Key()])
		}
		announced := leaf.Stats().ExtInvReceivedBytes > 0
		if announced != spv {
			t.Fatalf("spv=%v: leaf announced before the relay validated = %v", spv, announced)
		}

		s.RunUntil(100)
		if !leaf.Chain().HasBlockKey(b.Key()) {
			t.Fatalf("spv=%v: leaf did not get the block", spv)
		}
		if leaf.Stats().ChunkReceivedBytes < 450000 {
			t.Errorf("spv=%v: leaf chunk bytes = %d", spv, leaf.Stats().ChunkReceivedBytes)
		}
	}
}

func TestChunkTimeoutRequeuesChunk(t *testing.T) {
	s, nodes := newMesh(2, Config{BlockTorrent: true, InvTimeout: 5})
	e := nodes[1]
	b := chain.Block{Height: 1, MinerID: 0, ParentMinerID: chain.GenesisMinerID, Size: 450000}
	key := b.Key()

	e.initChunks(key, b.Size)
	c, ok := e.pickChunk(key, wire.Availability{FullBlock: true})
	if !ok {
		t.Fatal("no chunk to pick")
	}
	e.armChunkTimeout(wire.ChunkKey{Block: key, Chunk: c}, b.Size)
	if slices.Contains(e.queueChunks[key], c) {
		t.Fatalf("picked chunk %d still queued", c)
	}

	// Five chunks share the 5s timeout.
	s.RunUntil(0.5)
	if e.Stats().ChunkTimeouts != 0 {
		t.Fatal("chunk timed out early")
	}
	s.RunUntil(1.5)
	if e.Stats().ChunkTimeouts != 1 {
		t.Fatalf("chunk timeouts = %d, want 1", e.Stats().ChunkTimeouts)
	}
	if !slices.Contains(e.queueChunks[key], c) || len(e.queueChunks[key]) != 5 {
		t.Fatalf("queue = %v, want chunk %d back", e.queueChunks[key], c)
	}
	if len(e.chunkTimeouts) != 0 {
		t.Errorf("timeout handle kept")
	}

	// Once the block is known the chunk is not asked for again.
	c, _ = e.pickChunk(key, wire.Availability{FullBlock: true})
	e.armChunkTimeout(wire.ChunkKey{Block: key, Chunk: c}, b.Size)
	e.MarkReceived(b)
	s.RunUntil(3)
	if e.Stats().ChunkTimeouts != 2 {
		t.Fatalf("chunk timeouts = %d, want 2", e.Stats().ChunkTimeouts)
	}
	if slices.Contains(e.queueChunks[key], c) {
		t.Fatalf("chunk %d requeued for a known block", c)
	}
}

func TestHeadersFetchMissingParent(t *testing.T) {
	s, nodes := newMesh(2, Config{Protocol: SendHeaders})
	holder, receiver := nodes[0], nodes[1]
	parent := mined(holder, 100000)
	child := mined(holder, 100000)

	// Only the child is announced; its parent must be fetched too.
	holder.Advertise([]chain.Block{child}, chain.NoPeer)
	s.RunUntil(100)

	if receiver.Chain().Height() != 2 {
		t.Fatalf("height = %d, want 2", receiver.Chain().Height())
	}
	if !receiver.Chain().HasBlockKey(parent.Key()) || len(receiver.Chain().Orphans()) != 0 {
		t.Fatalf("parent missing or orphans left: %v", receiver.Chain().Orphans())
	}
	if receiver.Stats().GetHeadersSentBytes == 0 {
		t.Error("parent header not requested")
	}
	if got := receiver.Stats().BlockReceivedBytes; got < 2*100000 {
		t.Errorf("block bytes = %d, want both bodies", got)
	}
	if len(receiver.invTimeouts) != 0 || len(receiver.onlyHeaders) != 0 {
		t.Errorf("request state kept: %d timeouts, %d headers", len(receiver.invTimeouts), len(receiver.onlyHeaders))
	}
	if receiver.Stats().BlockTimeouts != 0 {
		t.Errorf("block timeouts = %d", receiver.Stats().BlockTimeouts)
	}
}

func TestPushReservesTransferSize(t *testing.T) {
	tests := []struct {
		name       string
		compressed bool
		class      transport.Class
		bytes      int
	}{
		{"block", false, transport.ClassBlock, wire.MessageHeaderSize + 500000},
		{"compressed", true, transport.ClassCompressed, wire.MessageHeaderSize + wire.CompressedBlockSize(500000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, nodes := newMesh(2, Config{})
			b := mined(nodes[0], 500000)
			nodes[0].PushBlocks([]chain.Block{b}, 1, tt.compressed)

			want := float64(tt.bytes) / testRate
			if got := nodes[0].Link().Send.FreeAt(tt.class); math.Abs(got-want) > 1e-9 {
				t.Fatalf("send pipe free at %v, want %v", got, want)
			}
		})
	}
}

func TestUploadRateOf(t *testing.T) {
	s := sched.New()
	cfg := Config{
		DownloadRate: testRate,
		UploadRate:   testRate,
		Peers: []PeerInfo{
			{ID: 1, DownloadRate: testRate, UploadRate: 2 * testRate},
			{ID: 2, DownloadRate: testRate},
		},
	}
	e := New(0, cfg, s, transport.NewNetwork(s), nil)

	tests := []struct {
		peer chain.NodeID
		want float64
	}{
		{1, 2 * testRate},
		{2, testRate},
		{7, testRate},
	}
	for _, tt := range tests {
		if got := e.uploadRateOf(tt.peer); got != tt.want {
			t.Errorf("upload rate of %d = %v, want %v", tt.peer, got, tt.want)
		}
	}
}
