package simulation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/miner"
	"github.com/shreekarashastry/blocksim/node"
)

const rate = 125000.0 // 1 Mbit/s

func fixedMinerConfig(size int) Config {
	return Config{
		Node: node.Config{DownloadRate: rate, UploadRate: rate},
		Miners: []MinerSpec{{
			ID:     0,
			Params: miner.Params{FixedInterval: 10, FixedBlockSize: size},
		}},
		TargetBlocks:  5,
		BlockInterval: 10,
		Seed:          7,
	}
}

func TestSingleMinerFixedInterval(t *testing.T) {
	sim, err := NewSimulation(fixedMinerConfig(500000), FullMesh(1))
	if err != nil {
		t.Fatal(err)
	}
	summary, err := sim.Run()
	if err != nil {
		t.Fatal(err)
	}

	bc := sim.Engines()[0].Chain()
	if bc.Height() != 5 {
		t.Fatalf("height = %d, want 5", bc.Height())
	}
	for h := 1; h <= 5; h++ {
		b, ok := bc.ReturnBlock(h, 0)
		if !ok {
			t.Fatalf("block %d missing", h)
		}
		if b.TimeCreated != float64(10*h) {
			t.Errorf("block %d created at %v", h, b.TimeCreated)
		}
	}
	stats := summary.Nodes[0]
	if stats.StaleBlocks != 0 || len(bc.Orphans()) != 0 {
		t.Errorf("stale = %d, orphans = %d", stats.StaleBlocks, len(bc.Orphans()))
	}
	if summary.Duration != 50 || summary.Stopped {
		t.Errorf("duration = %v, stopped = %v", summary.Duration, summary.Stopped)
	}
	if _, err := sim.Run(); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second run: %v", err)
	}
}

func TestTwoNodePropagation(t *testing.T) {
	sim, err := NewSimulation(fixedMinerConfig(500000), FullMesh(2))
	if err != nil {
		t.Fatal(err)
	}
	summary, err := sim.Run()
	if err != nil {
		t.Fatal(err)
	}

	want := 500090.0 / rate
	if got := summary.Nodes[1].MeanBlockPropagationTime; math.Abs(got-want) > 1e-6 {
		t.Fatalf("propagation = %v, want %v", got, want)
	}
	// The block mined at the stop time never reaches the peer.
	if h := sim.Engines()[1].Chain().Height(); h != 4 {
		t.Errorf("peer height = %d, want 4", h)
	}
}

func TestPerNodeRates(t *testing.T) {
	topo := FullMesh(2)
	topo.SetRates(0, NodeRates{Upload: 2 * rate})
	topo.SetRates(1, NodeRates{Download: rate / 2})
	sim, err := NewSimulation(fixedMinerConfig(500000), topo)
	if err != nil {
		t.Fatal(err)
	}

	sender, peer := sim.Engines()[0], sim.Engines()[1]
	if got := sender.Config().UploadRate; got != 2*rate {
		t.Errorf("sender upload = %v", got)
	}
	if got := sender.Config().DownloadRate; got != rate {
		t.Errorf("sender download = %v, want the global rate", got)
	}
	if got := peer.Peers()[0]; got.UploadRate != 2*rate || got.DownloadRate != rate {
		t.Errorf("peer sees the sender as %+v", got)
	}
	if got := sender.Peers()[0]; got.DownloadRate != rate/2 || got.UploadRate != rate {
		t.Errorf("sender sees the peer as %+v", got)
	}

	summary, err := sim.Run()
	if err != nil {
		t.Fatal(err)
	}
	want := 500090.0 / (rate / 2)
	if got := summary.Nodes[1].MeanBlockPropagationTime; math.Abs(got-want) > 1e-6 {
		t.Fatalf("propagation = %v, want %v", got, want)
	}
}

func TestChunkedMatchesWholeBlocks(t *testing.T) {
	run := func(torrent bool) *Simulation {
		cfg := fixedMinerConfig(450000)
		cfg.Node.BlockTorrent = torrent
		sim, err := NewSimulation(cfg, FullMesh(3))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := sim.Run(); err != nil {
			t.Fatal(err)
		}
		return sim
	}
	whole, chunked := run(false), run(true)
	for i := range whole.Engines() {
		a, b := whole.Engines()[i].Chain(), chunked.Engines()[i].Chain()
		if a.Height() != b.Height() || a.TotalBlocks() != b.TotalBlocks() {
			t.Fatalf("node %d: whole height %d/%d blocks, chunked height %d/%d blocks",
				i, a.Height(), a.TotalBlocks(), b.Height(), b.TotalBlocks())
		}
		for h := 1; h <= a.Height(); h++ {
			wb, ok := a.ReturnBlock(h, 0)
			if !ok {
				t.Fatalf("node %d: whole run misses block %d", i, h)
			}
			cb, ok := b.ReturnBlock(h, 0)
			if !ok {
				t.Fatalf("node %d: chunked run misses block %d", i, h)
			}
			if cb.Height != wb.Height || cb.ParentMinerID != wb.ParentMinerID || cb.Size != wb.Size {
				t.Errorf("node %d height %d: chunked %v, whole %v", i, h, cb, wb)
			}
		}
		if b.StaleBlocks() != 0 || len(b.Orphans()) != 0 {
			t.Errorf("node %d: stale = %d, orphans = %d", i, b.StaleBlocks(), len(b.Orphans()))
		}
	}
	if chunked.Engines()[2].Stats().ChunkReceivedBytes == 0 {
		t.Error("no chunk traffic with BlockTorrent")
	}
}

func TestFeedDeliversBlocksAndSummary(t *testing.T) {
	sim, err := NewSimulation(fixedMinerConfig(100000), Line(3))
	if err != nil {
		t.Fatal(err)
	}
	ch := make(chan Event, 64)
	sub := sim.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	if _, err := sim.Run(); err != nil {
		t.Fatal(err)
	}

	blocks := 0
	for {
		select {
		case ev := <-ch:
			if ev.Summary != nil {
				if blocks == 0 {
					t.Fatal("summary before any block")
				}
				if len(ev.Summary.Nodes) != 3 {
					t.Fatalf("summary has %d nodes", len(ev.Summary.Nodes))
				}
				return
			}
			blocks++
		case <-time.After(time.Second):
			t.Fatal("no summary on the feed")
		}
	}
}

func TestRunTrialsStopsOnSuccess(t *testing.T) {
	cfg := Config{
		Node: node.Config{DownloadRate: rate, UploadRate: rate},
		Miners: []MinerSpec{
			{ID: 0, Params: miner.Params{FixedInterval: 10, FixedBlockSize: 1000}},
			{ID: 1, Params: miner.Params{Kind: miner.TrialsMiner, FixedInterval: 3, FixedBlockSize: 1000, SecureBlocks: 2}},
		},
		TargetBlocks:  100,
		BlockInterval: 10,
	}
	res, err := RunTrials(cfg, FullMesh(2), 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Runs) != 3 {
		t.Fatalf("runs = %d", len(res.Runs))
	}
	for i, r := range res.Runs {
		if r.Seed != int64(i) {
			t.Errorf("run %d seed = %d", i, r.Seed)
		}
		if !r.Stopped || r.Duration != 6 {
			t.Errorf("run %d: stopped = %v at %v, want stopped at 6", i, r.Stopped, r.Duration)
		}
	}
	if res.Successful() != 3 || res.MeanAttackSuccess() != 1 {
		t.Errorf("successful = %d, mean = %v", res.Successful(), res.MeanAttackSuccess())
	}
}

func TestNewSimulationRejectsBadConfig(t *testing.T) {
	tests := map[string]struct {
		cfg  func() Config
		topo Topology
	}{
		"no target": {func() Config { c := fixedMinerConfig(1); c.TargetBlocks = 0; return c }, FullMesh(2)},
		"no rates":  {func() Config { c := fixedMinerConfig(1); c.Node.UploadRate = 0; return c }, FullMesh(2)},
		"miner out of range": {func() Config {
			c := fixedMinerConfig(1)
			c.Miners[0].ID = 5
			return c
		}, FullMesh(2)},
		"selfish without table": {func() Config {
			c := fixedMinerConfig(1)
			c.Miners[0].Params.Kind = miner.SelfishMiner
			return c
		}, FullMesh(2)},
		"asymmetric": {func() Config { return fixedMinerConfig(1) }, Topology{Peers: [][]chain.NodeID{{1}, {}}}},
		"rates length": {func() Config { return fixedMinerConfig(1) }, Topology{
			Peers: [][]chain.NodeID{{1}, {0}},
			Rates: []NodeRates{{Download: rate}},
		}},
		"negative rate": {func() Config { return fixedMinerConfig(1) }, Topology{
			Peers: [][]chain.NodeID{{1}, {0}},
			Rates: []NodeRates{{}, {Upload: -1}},
		}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewSimulation(tt.cfg(), tt.topo)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
