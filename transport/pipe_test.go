package transport

import (
	"testing"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/sched"
)

func TestReserveSerializesSameClass(t *testing.T) {
	var p Pipe
	tests := []struct {
		now, duration, wantWait, wantFree float64
	}{
		{0, 4, 0, 4},
		{1, 2, 3, 6},
		{2, 1, 4, 7},
		{10, 1, 0, 11},
	}
	lastEnd := 0.0
	for i, tt := range tests {
		wait := p.Reserve(tt.now, ClassBlock, tt.duration)
		if wait != tt.wantWait {
			t.Fatalf("reservation %d: wait = %v, want %v", i, wait, tt.wantWait)
		}
		if p.FreeAt(ClassBlock) != tt.wantFree {
			t.Fatalf("reservation %d: free = %v, want %v", i, p.FreeAt(ClassBlock), tt.wantFree)
		}
		end := tt.now + wait + tt.duration
		if end < lastEnd {
			t.Fatalf("reservation %d completes at %v before previous %v", i, end, lastEnd)
		}
		lastEnd = end
	}
}

func TestClassesAreIndependent(t *testing.T) {
	var p Pipe
	p.Reserve(0, ClassBlock, 100)
	if wait := p.Reserve(0, ClassChunk, 1); wait != 0 {
		t.Fatalf("chunk waited %v behind a block", wait)
	}
	if wait := p.Reserve(0, ClassCompressed, 1); wait != 0 {
		t.Fatalf("compressed waited %v behind a block", wait)
	}
	if wait := p.Reserve(0, ClassBlock, 1); wait != 100 {
		t.Fatalf("block wait = %v, want 100", wait)
	}
}

type recorder struct {
	s   *sched.Scheduler
	got []string
	at  []float64
}

func (r *recorder) Deliver(from chain.NodeID, data []byte) {
	r.got = append(r.got, string(data))
	r.at = append(r.at, r.s.Now())
}

func TestNetworkDeliversInOrder(t *testing.T) {
	s := sched.New()
	n := NewNetwork(s)
	r := &recorder{s: s}
	n.Register(1, r)
	n.Register(2, &recorder{s: s})

	frame := []byte("a#")
	n.Send(2, 1, frame, 0)
	frame[0] = 'z'
	n.Send(2, 1, []byte("b#"), 0)
	n.Send(2, 1, []byte("c#"), 1.5)
	s.RunUntil(10)

	want := []string{"a#", "b#", "c#"}
	if len(r.got) != len(want) {
		t.Fatalf("got %v", r.got)
	}
	for i := range want {
		if r.got[i] != want[i] {
			t.Fatalf("delivery %d = %q, want %q", i, r.got[i], want[i])
		}
	}
	if r.at[2] != 1.5 {
		t.Fatalf("delayed frame arrived at %v", r.at[2])
	}
	if frames, _ := n.Stats(); frames != 3 {
		t.Fatalf("frames = %d", frames)
	}
}

func TestSendToUnknownNodePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	n := NewNetwork(sched.New())
	n.Send(0, 7, nil, 0)
}
