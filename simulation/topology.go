package simulation

import (
	"fmt"

	"github.com/shreekarashastry/blocksim/chain"
)

// Topology lists the neighbours of every node. Node ids are the indices of
// Peers and links must be symmetric. Rates, when set, holds one entry per
// node.
type Topology struct {
	Peers [][]chain.NodeID
	Rates []NodeRates
}

// NodeRates are the bandwidths of one node in bytes per second. A zero
// value falls back to the rate of the run configuration.
type NodeRates struct {
	Download float64
	Upload   float64
}

// SetRates overrides the bandwidth of node id.
func (t *Topology) SetRates(id chain.NodeID, r NodeRates) {
	if t.Rates == nil {
		t.Rates = make([]NodeRates, len(t.Peers))
	}
	t.Rates[id] = r
}

// RatesOf returns the bandwidth of node id, taking missing values from def.
func (t Topology) RatesOf(id chain.NodeID, def NodeRates) NodeRates {
	if int(id) >= len(t.Rates) {
		return def
	}
	r := t.Rates[id]
	if r.Download <= 0 {
		r.Download = def.Download
	}
	if r.Upload <= 0 {
		r.Upload = def.Upload
	}
	return r
}

// Nodes returns the number of nodes in the topology.
func (t Topology) Nodes() int {
	return len(t.Peers)
}

// Star connects node 0 to every other node.
func Star(n int) Topology {
	t := Topology{Peers: make([][]chain.NodeID, n)}
	for i := 1; i < n; i++ {
		t.link(0, i)
	}
	return t
}

// Line connects node i to node i+1.
func Line(n int) Topology {
	t := Topology{Peers: make([][]chain.NodeID, n)}
	for i := 0; i+1 < n; i++ {
		t.link(i, i+1)
	}
	return t
}

// FullMesh connects every pair of nodes.
func FullMesh(n int) Topology {
	t := Topology{Peers: make([][]chain.NodeID, n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			t.link(i, j)
		}
	}
	return t
}

// ByName returns the topology called name ("star", "line" or "mesh").
func ByName(name string, n int) (Topology, error) {
	switch name {
	case "star":
		return Star(n), nil
	case "line":
		return Line(n), nil
	case "mesh", "fullmesh":
		return FullMesh(n), nil
	}
	return Topology{}, fmt.Errorf("unknown topology %q", name)
}

func (t *Topology) link(a, b int) {
	t.Peers[a] = append(t.Peers[a], chain.NodeID(b))
	t.Peers[b] = append(t.Peers[b], chain.NodeID(a))
}

// Validate checks that every link points at an existing node, is not a self
// loop, appears once and has its reverse link.
func (t Topology) Validate() error {
	n := len(t.Peers)
	if n == 0 {
		return fmt.Errorf("topology has no nodes")
	}
	if len(t.Rates) != 0 && len(t.Rates) != n {
		return fmt.Errorf("%d rate entries for %d nodes", len(t.Rates), n)
	}
	for i, r := range t.Rates {
		if r.Download < 0 || r.Upload < 0 {
			return fmt.Errorf("node %d: negative rate", i)
		}
	}
	for i, peers := range t.Peers {
		seen := make(map[chain.NodeID]bool, len(peers))
		for _, p := range peers {
			switch {
			case int(p) < 0 || int(p) >= n:
				return fmt.Errorf("node %d: peer %d out of range", i, p)
			case int(p) == i:
				return fmt.Errorf("node %d: self loop", i)
			case seen[p]:
				return fmt.Errorf("node %d: duplicate peer %d", i, p)
			case !t.has(int(p), chain.NodeID(i)):
				return fmt.Errorf("link %d-%d is not symmetric", i, p)
			}
			seen[p] = true
		}
	}
	return nil
}

func (t Topology) has(from int, to chain.NodeID) bool {
	for _, p := range t.Peers[from] {
		if p == to {
			return true
		}
	}
	return false
}
