package simulation

import (
	"fmt"

	"github.com/dominant-strategies/go-quai/event"
	"github.com/sirupsen/logrus"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/log"
	"github.com/shreekarashastry/blocksim/miner"
	"github.com/shreekarashastry/blocksim/node"
	"github.com/shreekarashastry/blocksim/sched"
	"github.com/shreekarashastry/blocksim/transport"
)

// Simulation owns the scheduler, the network and the engines of one run.
type Simulation struct {
	cfg     Config
	sched   *sched.Scheduler
	net     *transport.Network
	engines []*node.Engine
	feed    event.Feed
	ran     bool
}

// NewSimulation builds one engine per node of topo and installs the
// configured mining strategies.
func NewSimulation(cfg Config, topo Topology) (*Simulation, error) {
	cfg.setDefaults()
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(topo.Nodes()); err != nil {
		return nil, err
	}

	miners := make(map[chain.NodeID]miner.Params, len(cfg.Miners))
	for _, m := range cfg.Miners {
		miners[m.ID] = m.Params
	}

	sim := &Simulation{
		cfg:   cfg,
		sched: sched.New(),
	}
	sim.net = transport.NewNetwork(sim.sched)
	defaults := NodeRates{Download: cfg.Node.DownloadRate, Upload: cfg.Node.UploadRate}
	for i, links := range topo.Peers {
		id := chain.NodeID(i)
		own := topo.RatesOf(id, defaults)
		nc := cfg.Node
		nc.Seed = cfg.Seed
		nc.DownloadRate, nc.UploadRate = own.Download, own.Upload
		nc.Peers = make([]node.PeerInfo, 0, len(links))
		for _, p := range links {
			_, isMiner := miners[p]
			rates := topo.RatesOf(p, defaults)
			nc.Peers = append(nc.Peers, node.PeerInfo{
				ID:           p,
				DownloadRate: rates.Download,
				UploadRate:   rates.Upload,
				Miner:        isMiner,
			})
		}
		e := node.New(id, nc, sim.sched, sim.net, log.NodeLogger(id))
		if params, ok := miners[id]; ok {
			st, err := miner.New(params)
			if err != nil {
				return nil, fmt.Errorf("%w: miner %d: %v", ErrInvalidConfig, id, err)
			}
			e.SetStrategy(st)
		}
		e.OnValidated(sim.blockValidated)
		sim.engines = append(sim.engines, e)
	}
	return sim, nil
}

func (sim *Simulation) blockValidated(id chain.NodeID, b chain.Block) {
	sim.feed.Send(Event{Block: &BlockEvent{Node: id, Block: b, Time: sim.sched.Now()}})
}

// Feed carries a BlockEvent for every validated block and the RunSummary
// once the run ends.
func (sim *Simulation) Feed() *event.Feed {
	return &sim.feed
}

// SubscribeEvents registers ch on the simulation feed.
func (sim *Simulation) SubscribeEvents(ch chan<- Event) event.Subscription {
	return sim.feed.Subscribe(ch)
}

// Engines returns the engines indexed by node id.
func (sim *Simulation) Engines() []*node.Engine {
	return sim.engines
}

// Run starts every node, advances virtual time to the stop time and returns
// the statistics of every node. A simulation runs once.
func (sim *Simulation) Run() (RunSummary, error) {
	if sim.ran {
		return RunSummary{}, ErrAlreadyRun
	}
	sim.ran = true

	stop := sim.cfg.StopTime()
	log.Global.WithFields(logrus.Fields{
		"nodes":  len(sim.engines),
		"miners": len(sim.cfg.Miners),
		"seed":   sim.cfg.Seed,
		"stop":   stop,
	}).Info("Starting simulation")

	for _, e := range sim.engines {
		e.Start()
	}
	sim.sched.RunUntil(stop)
	stopped := sim.sched.Stopped()
	for _, e := range sim.engines {
		e.Stop()
	}

	summary := RunSummary{
		Seed:        sim.cfg.Seed,
		Duration:    sim.sched.Now(),
		Stopped:     stopped,
		EventsFired: sim.sched.Fired(),
		Nodes:       make([]node.Statistics, len(sim.engines)),
	}
	for i, e := range sim.engines {
		summary.Nodes[i] = *e.Stats()
	}
	frames, bytes := sim.net.Stats()
	log.Global.WithFields(logrus.Fields{
		"duration":      summary.Duration,
		"stopped":       stopped,
		"events":        summary.EventsFired,
		"frames":        frames,
		"bytes":         bytes,
		"attackSuccess": summary.AttackSuccess(),
	}).Info("Simulation finished")

	sim.feed.Send(Event{Summary: &summary})
	return summary, nil
}
