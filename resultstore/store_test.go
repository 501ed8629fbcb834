package resultstore

import (
	"errors"
	"testing"

	"github.com/shreekarashastry/blocksim/miner"
	"github.com/shreekarashastry/blocksim/node"
	"github.com/shreekarashastry/blocksim/simulation"
)

func newSimulation(t *testing.T, seed int64) *simulation.Simulation {
	t.Helper()
	cfg := simulation.Config{
		Node: node.Config{DownloadRate: 125000, UploadRate: 125000},
		Miners: []simulation.MinerSpec{{
			ID:     0,
			Params: miner.Params{FixedInterval: 10, FixedBlockSize: 200000},
		}},
		TargetBlocks:  3,
		BlockInterval: 10,
		Seed:          seed,
	}
	sim, err := simulation.NewSimulation(cfg, simulation.Line(3))
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestRecorderStoresRun(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	sim := newSimulation(t, 1)
	rec := NewRecorder(store, sim, "line-3", true)
	summary, err := sim.Run()
	if err != nil {
		t.Fatal(err)
	}
	id, err := rec.Wait()
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "line-3" || got.Summary.Seed != 1 || len(got.Summary.Nodes) != 3 {
		t.Fatalf("record = %+v", got.Summary)
	}
	if got.Summary.Nodes[2].TotalBlocks != summary.Nodes[2].TotalBlocks {
		t.Errorf("total blocks = %d, want %d", got.Summary.Nodes[2].TotalBlocks, summary.Nodes[2].TotalBlocks)
	}
	// The miner validates 3 blocks and each relay validates the 2 that
	// arrive before the stop time.
	if len(got.Blocks) != 7 {
		t.Errorf("blocks = %d, want 7", len(got.Blocks))
	}
	for _, ev := range got.Blocks {
		if ev.Node == 0 && ev.Block.MinerID != 0 {
			t.Errorf("unexpected block %v at the miner", ev.Block)
		}
	}

	st, err := store.NodeStats(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if st.MinerGeneratedBlocks != 3 {
		t.Errorf("generated = %d, want 3", st.MinerGeneratedBlocks)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	store, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("ids = %v, want [%s]", ids, id)
	}
}

func TestDistinctRunsGetDistinctIDs(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	seen := make(map[RunID]bool)
	for seed := int64(0); seed < 3; seed++ {
		sim := newSimulation(t, seed)
		rec := NewRecorder(store, sim, "", false)
		if _, err := sim.Run(); err != nil {
			t.Fatal(err)
		}
		id, err := rec.Wait()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		got, err := store.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Blocks) != 0 {
			t.Errorf("blocks kept without keepBlocks")
		}
	}
	ids, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestGetUnknownRun(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Get("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
	if _, err := store.NodeStats("missing", 0); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRecorderClosedWithoutRun(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	rec := NewRecorder(store, newSimulation(t, 1), "", false)
	rec.Close()
	if _, err := rec.Wait(); !errors.Is(err, ErrNoSummary) {
		t.Fatalf("err = %v, want ErrNoSummary", err)
	}
}
