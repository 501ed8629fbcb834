package resultstore

import (
	"errors"

	"github.com/dominant-strategies/go-quai/event"

	"github.com/shreekarashastry/blocksim/log"
	"github.com/shreekarashastry/blocksim/simulation"
)

var ErrNoSummary = errors.New("resultstore: feed closed before the run summary")

const eventBuffer = 256

// Recorder stores the run of one simulation. It consumes the simulation
// feed on its own goroutine until the run summary arrives.
type Recorder struct {
	store      *Store
	label      string
	keepBlocks bool

	ch   chan simulation.Event
	sub  event.Subscription
	done chan struct{}

	id  RunID
	err error
}

// NewRecorder subscribes to sim. Validated blocks are kept in the record
// only when keepBlocks is set.
func NewRecorder(store *Store, sim *simulation.Simulation, label string, keepBlocks bool) *Recorder {
	r := &Recorder{
		store:      store,
		label:      label,
		keepBlocks: keepBlocks,
		ch:         make(chan simulation.Event, eventBuffer),
		done:       make(chan struct{}),
	}
	r.sub = sim.SubscribeEvents(r.ch)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)
	defer r.sub.Unsubscribe()

	var blocks []simulation.BlockEvent
	for {
		select {
		case ev := <-r.ch:
			if ev.Block != nil {
				if r.keepBlocks {
					blocks = append(blocks, *ev.Block)
				}
				continue
			}
			r.id, r.err = r.store.Put(Record{Label: r.label, Summary: *ev.Summary, Blocks: blocks})
			if r.err != nil {
				log.Global.WithField("err", r.err).Error("Failed to store run")
				return
			}
			log.Global.WithField("run", r.id).Info("Stored run")
			return
		case err := <-r.sub.Err():
			r.err = err
			if r.err == nil {
				r.err = ErrNoSummary
			}
			return
		}
	}
}

// Wait blocks until the run is stored and returns its id.
func (r *Recorder) Wait() (RunID, error) {
	<-r.done
	return r.id, r.err
}

// Close stops a recorder whose simulation will not run.
func (r *Recorder) Close() {
	r.sub.Unsubscribe()
	<-r.done
}
