package main

import (
	"flag"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shreekarashastry/blocksim/config"
	"github.com/shreekarashastry/blocksim/log"
	"github.com/shreekarashastry/blocksim/resultstore"
	"github.com/shreekarashastry/blocksim/simulation"
)

var (
	configFile = flag.String("config", "config.yaml", "path of the yaml configuration")
	trials     = flag.Int("trials", 0, "number of runs, overrides the configuration when positive")
	dbDir      = flag.String("db", "", "result store directory, overrides the configuration")
)

func main() {
	flag.Parse()

	dir, file := filepath.Split(*configFile)
	conf, err := config.LoadConfig(dir, strings.TrimSuffix(file, filepath.Ext(file)))
	if err != nil {
		log.Global.WithField("err", err).Fatal("Failed to load config")
	}
	if err := log.Configure(log.Options{File: conf.Log.File, Level: conf.Log.Level}); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to configure logging")
	}
	if *trials > 0 {
		conf.Trials = *trials
	}
	if *dbDir != "" {
		conf.DB = *dbDir
	}

	simConf, topo, err := conf.Simulation()
	if err != nil {
		log.Global.WithField("err", err).Fatal("Invalid simulation config")
	}

	var store *resultstore.Store
	if conf.DB != "" {
		if store, err = resultstore.Open(conf.DB); err != nil {
			log.Global.WithField("err", err).Fatal("Failed to open result store")
		}
		defer store.Close()
	}

	var recorders []*resultstore.Recorder
	res, err := simulation.RunTrials(simConf, topo, conf.Trials, func(sim *simulation.Simulation) error {
		if store != nil {
			recorders = append(recorders, resultstore.NewRecorder(store, sim, conf.Topology, false))
		}
		return nil
	})
	if err != nil {
		log.Global.WithField("err", err).Error("Simulation failed")
		return
	}
	for _, r := range recorders {
		if _, err := r.Wait(); err != nil {
			log.Global.WithField("err", err).Error("Failed to record run")
		}
	}

	for i, run := range res.Runs {
		for _, st := range run.Nodes {
			log.Global.WithFields(logrus.Fields{
				"run":             i,
				"node":            st.NodeID,
				"totalBlocks":     st.TotalBlocks,
				"stale":           st.StaleBlocks,
				"meanPropagation": st.MeanBlockPropagationTime,
				"generated":       st.MinerGeneratedBlocks,
				"inMainChain":     st.MinedBlocksInMainChain,
				"attackSuccess":   st.AttackSuccess,
				"sentBytes":       st.TotalSentBytes(),
				"receivedBytes":   st.TotalReceivedBytes(),
			}).Info("Node statistics")
		}
	}
}
