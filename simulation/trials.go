package simulation

import (
	"github.com/sirupsen/logrus"

	"github.com/shreekarashastry/blocksim/log"
)

// TrialsResult aggregates independent runs of the same configuration.
type TrialsResult struct {
	Runs []RunSummary
	// AttackSuccess holds the summed attack successes of every run.
	AttackSuccess []int
}

// Successful returns the number of runs with at least one attack success.
func (r TrialsResult) Successful() int {
	n := 0
	for _, s := range r.AttackSuccess {
		if s > 0 {
			n++
		}
	}
	return n
}

// MeanAttackSuccess averages the attack successes over the runs.
func (r TrialsResult) MeanAttackSuccess() float64 {
	if len(r.AttackSuccess) == 0 {
		return 0
	}
	total := 0
	for _, s := range r.AttackSuccess {
		total += s
	}
	return float64(total) / float64(len(r.AttackSuccess))
}

// RunTrials performs n runs of cfg, the i-th one seeded with cfg.Seed+i.
// observe, when not nil, is called on every simulation before it runs.
func RunTrials(cfg Config, topo Topology, n int, observe func(*Simulation) error) (TrialsResult, error) {
	var res TrialsResult
	for i := 0; i < n; i++ {
		trial := cfg
		trial.Seed = cfg.Seed + int64(i)
		sim, err := NewSimulation(trial, topo)
		if err != nil {
			return res, err
		}
		if observe != nil {
			if err := observe(sim); err != nil {
				return res, err
			}
		}
		summary, err := sim.Run()
		if err != nil {
			return res, err
		}
		res.Runs = append(res.Runs, summary)
		res.AttackSuccess = append(res.AttackSuccess, summary.AttackSuccess())
	}
	log.Global.WithFields(logrus.Fields{
		"trials":     n,
		"successful": res.Successful(),
		"mean":       res.MeanAttackSuccess(),
	}).Info("Trials finished")
	return res, nil
}
