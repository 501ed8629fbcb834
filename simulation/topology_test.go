package simulation

import (
	"testing"
)

func TestTopologies(t *testing.T) {
	tests := []struct {
		name    string
		topo    Topology
		degrees []int
	}{
		{"star", Star(4), []int{3, 1, 1, 1}},
		{"line", Line(4), []int{1, 2, 2, 1}},
		{"mesh", FullMesh(4), []int{3, 3, 3, 3}},
		{"single", FullMesh(1), []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.topo.Validate(); err != nil {
				t.Fatal(err)
			}
			if tt.topo.Nodes() != len(tt.degrees) {
				t.Fatalf("nodes = %d", tt.topo.Nodes())
			}
			for i, d := range tt.degrees {
				if len(tt.topo.Peers[i]) != d {
					t.Errorf("node %d degree = %d, want %d", i, len(tt.topo.Peers[i]), d)
				}
			}
		})
	}
}

func TestByName(t *testing.T) {
	if _, err := ByName("ring", 3); err == nil {
		t.Fatal("unknown topology accepted")
	}
	topo, err := ByName("line", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(topo.Peers[1]) != 2 {
		t.Fatalf("line middle degree = %d", len(topo.Peers[1]))
	}
}
