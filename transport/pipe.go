package transport

import "fmt"

// Class separates traffic that is serialized independently on a node's pipe.
type Class int

const (
	ClassBlock Class = iota
	ClassCompressed
	ClassChunk
	numClasses
)

func (c Class) String() string {
	switch c {
	case ClassBlock:
		return "block"
	case ClassCompressed:
		return "compressed"
	case ClassChunk:
		return "chunk"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Pipe tracks, per traffic class, the virtual time at which one direction of
// a node's link becomes free. Transfers on the same class are served first
// come first served without preemption.
type Pipe struct {
	free [numClasses]float64
}

// Reserve books duration seconds on class c starting no earlier than now and
// returns how long the transfer has to wait before it starts.
func (p *Pipe) Reserve(now float64, c Class, duration float64) (wait float64) {
	if c < 0 || c >= numClasses {
		panic(fmt.Sprintf("transport: unknown class %d", int(c)))
	}
	if duration < 0 {
		panic(fmt.Sprintf("transport: negative duration %v", duration))
	}
	if p.free[c] > now {
		wait = p.free[c] - now
	}
	p.free[c] = now + wait + duration
	return wait
}

// FreeAt returns the time class c becomes idle.
func (p *Pipe) FreeAt(c Class) float64 {
	return p.free[c]
}

// Link holds both directions of a node's connectivity.
type Link struct {
	Send    Pipe
	Receive Pipe
}
