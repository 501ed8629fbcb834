package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/shreekarashastry/blocksim/chain"
	"github.com/shreekarashastry/blocksim/log"
	"github.com/shreekarashastry/blocksim/miner"
	"github.com/shreekarashastry/blocksim/node"
	"github.com/shreekarashastry/blocksim/simulation"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

const (
	envPrefix = "BLOCKSIM"

	// bytesPerMbit converts Mbit/s to B/s.
	bytesPerMbit = 1000000 / 8
)

type Config struct {
	Nodes         int     `mapstructure:"nodes"`
	Topology      string  `mapstructure:"topology"`
	TargetBlocks  int     `mapstructure:"targetBlocks"`
	BlockInterval float64 `mapstructure:"blockInterval"`
	Seed          int64   `mapstructure:"seed"`
	Trials        int     `mapstructure:"trials"`

	Protocol          string  `mapstructure:"protocol"`
	BlockTorrent      bool    `mapstructure:"blockTorrent"`
	ChunkSize         int     `mapstructure:"chunkSize"`
	SPV               bool    `mapstructure:"spv"`
	InvTimeoutMinutes float64 `mapstructure:"invTimeoutMinutes"`
	DownloadMbps      float64 `mapstructure:"downloadMbps"`
	UploadMbps        float64 `mapstructure:"uploadMbps"`
	Cryptocurrency    string  `mapstructure:"cryptocurrency"`
	Broadcast         string  `mapstructure:"broadcast"`

	Miners []MinerConfig `mapstructure:"miners"`
	// Rates overrides the bandwidth of single nodes.
	Rates []RateConfig `mapstructure:"rates"`

	Log LogConfig `mapstructure:"log"`
	// DB is the directory of the result store. Results are not persisted
	// when it is empty.
	DB string `mapstructure:"db"`
}

type MinerConfig struct {
	ID             int     `mapstructure:"id"`
	Kind           string  `mapstructure:"kind"`
	HashRate       float64 `mapstructure:"hashRate"`
	FixedInterval  float64 `mapstructure:"fixedInterval"`
	FixedBlockSize int     `mapstructure:"fixedBlockSize"`
	// Broadcast overrides the network wide broadcast policy.
	Broadcast string `mapstructure:"broadcast"`

	// Table is "sm1", "optimal" or the path of a decision table file.
	Table   string  `mapstructure:"table"`
	MaxFork int     `mapstructure:"maxFork"`
	Alpha   float64 `mapstructure:"alpha"`
	Gamma   float64 `mapstructure:"gamma"`

	SecureBlocks    int  `mapstructure:"secureBlocks"`
	AdvertiseBlocks bool `mapstructure:"advertiseBlocks"`
}

// RateConfig sets the bandwidth of one node in Mbit/s. A zero value keeps
// the global rate.
type RateConfig struct {
	ID           int     `mapstructure:"id"`
	DownloadMbps float64 `mapstructure:"downloadMbps"`
	UploadMbps   float64 `mapstructure:"uploadMbps"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("nodes", 2)
	v.SetDefault("topology", "mesh")
	v.SetDefault("targetBlocks", 100)
	v.SetDefault("blockInterval", miner.DefaultTargetInterval)
	v.SetDefault("seed", 1)
	v.SetDefault("trials", 1)
	v.SetDefault("protocol", "standard")
	v.SetDefault("blockTorrent", false)
	v.SetDefault("chunkSize", node.DefaultChunkSize)
	v.SetDefault("spv", false)
	v.SetDefault("invTimeoutMinutes", node.DefaultInvTimeout/60)
	v.SetDefault("downloadMbps", 8)
	v.SetDefault("uploadMbps", 8)
	v.SetDefault("cryptocurrency", "bitcoin")
	v.SetDefault("broadcast", "standard")
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("db", "")
}

// LoadConfig reads name.yaml from path (the working directory when path is
// empty). A missing file leaves the defaults in place. Every key can be
// overridden from the environment, e.g. BLOCKSIM_LOG_LEVEL.
func LoadConfig(path, name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	if path == "" {
		path = "."
	}
	v.AddConfigPath(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Global.WithField("path", path).Debug("No config file found, using defaults")
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Nodes <= 0:
		return fmt.Errorf("%w: nodes must be positive, got %d", ErrInvalidConfig, c.Nodes)
	case c.TargetBlocks <= 0:
		return fmt.Errorf("%w: targetBlocks must be positive, got %d", ErrInvalidConfig, c.TargetBlocks)
	case c.BlockInterval <= 0:
		return fmt.Errorf("%w: blockInterval must be positive, got %v", ErrInvalidConfig, c.BlockInterval)
	case c.Trials <= 0:
		return fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, c.Trials)
	case c.DownloadMbps <= 0 || c.UploadMbps <= 0:
		return fmt.Errorf("%w: rates must be positive", ErrInvalidConfig)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunkSize must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if _, err := protocolType(c.Protocol); err != nil {
		return err
	}
	if _, err := cryptocurrency(c.Cryptocurrency); err != nil {
		return err
	}
	if _, err := broadcastType(c.Broadcast); err != nil {
		return err
	}
	for _, r := range c.Rates {
		if r.ID < 0 || r.ID >= c.Nodes {
			return fmt.Errorf("%w: rate for node %d outside 0..%d", ErrInvalidConfig, r.ID, c.Nodes-1)
		}
		if r.DownloadMbps < 0 || r.UploadMbps < 0 {
			return fmt.Errorf("%w: node %d has a negative rate", ErrInvalidConfig, r.ID)
		}
	}
	for _, m := range c.Miners {
		if m.ID < 0 || m.ID >= c.Nodes {
			return fmt.Errorf("%w: miner id %d outside 0..%d", ErrInvalidConfig, m.ID, c.Nodes-1)
		}
		if _, err := minerKind(m.Kind); err != nil {
			return err
		}
		if m.Broadcast != "" {
			if _, err := broadcastType(m.Broadcast); err != nil {
				return err
			}
		}
	}
	return nil
}

// Simulation converts the configuration into the description of one run.
// Decision tables are loaded or computed here.
func (c *Config) Simulation() (simulation.Config, simulation.Topology, error) {
	topo, err := simulation.ByName(c.Topology, c.Nodes)
	if err != nil {
		return simulation.Config{}, simulation.Topology{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, r := range c.Rates {
		topo.SetRates(chain.NodeID(r.ID), simulation.NodeRates{
			Download: r.DownloadMbps * bytesPerMbit,
			Upload:   r.UploadMbps * bytesPerMbit,
		})
	}
	protocol, err := protocolType(c.Protocol)
	if err != nil {
		return simulation.Config{}, simulation.Topology{}, err
	}
	currency, err := cryptocurrency(c.Cryptocurrency)
	if err != nil {
		return simulation.Config{}, simulation.Topology{}, err
	}
	policy, err := broadcastType(c.Broadcast)
	if err != nil {
		return simulation.Config{}, simulation.Topology{}, err
	}

	sc := simulation.Config{
		Node: node.Config{
			Protocol:     protocol,
			BlockTorrent: c.BlockTorrent,
			ChunkSize:    c.ChunkSize,
			SPV:          c.SPV,
			InvTimeout:   c.InvTimeoutMinutes * 60,
			DownloadRate: c.DownloadMbps * bytesPerMbit,
			UploadRate:   c.UploadMbps * bytesPerMbit,
		},
		TargetBlocks:  c.TargetBlocks,
		BlockInterval: c.BlockInterval,
		Seed:          c.Seed,
	}
	for _, m := range c.Miners {
		params, err := m.params(currency, policy, c.BlockInterval)
		if err != nil {
			return simulation.Config{}, simulation.Topology{}, fmt.Errorf("miner %d: %w", m.ID, err)
		}
		sc.Miners = append(sc.Miners, simulation.MinerSpec{ID: chain.NodeID(m.ID), Params: params})
	}
	return sc, topo, nil
}

func (m MinerConfig) params(currency miner.Cryptocurrency, policy miner.BroadcastType, interval float64) (miner.Params, error) {
	kind, err := minerKind(m.Kind)
	if err != nil {
		return miner.Params{}, err
	}
	if m.Broadcast != "" {
		if policy, err = broadcastType(m.Broadcast); err != nil {
			return miner.Params{}, err
		}
	}
	p := miner.Params{
		Kind:            kind,
		HashRate:        m.HashRate,
		FixedInterval:   m.FixedInterval,
		FixedBlockSize:  m.FixedBlockSize,
		TargetInterval:  interval,
		Cryptocurrency:  currency,
		Broadcast:       policy,
		SecureBlocks:    m.SecureBlocks,
		AdvertiseBlocks: m.AdvertiseBlocks,
	}
	if kind == miner.SelfishMiner {
		if p.Table, err = m.table(); err != nil {
			return miner.Params{}, err
		}
	}
	return p, nil
}

func (m MinerConfig) table() (*miner.DecisionTable, error) {
	maxFork := m.MaxFork
	if maxFork <= 0 {
		maxFork = 10
	}
	switch m.Table {
	case "", "sm1":
		return miner.SM1Table(maxFork), nil
	case "optimal":
		alpha := m.Alpha
		if alpha <= 0 {
			alpha = m.HashRate
		}
		if alpha <= 0 || alpha >= 1 || m.Gamma < 0 || m.Gamma > 1 {
			return nil, fmt.Errorf("%w: optimal table needs 0 < alpha < 1 and 0 <= gamma <= 1", ErrInvalidConfig)
		}
		return miner.OptimalTable(alpha, m.Gamma, maxFork), nil
	}
	f, err := os.Open(m.Table)
	if err != nil {
		return nil, fmt.Errorf("open decision table: %w", err)
	}
	defer f.Close()
	return miner.ParseDecisionTable(f)
}

func protocolType(s string) (node.ProtocolType, error) {
	switch strings.ToLower(s) {
	case "standard", "standard_protocol":
		return node.StandardProtocol, nil
	case "sendheaders":
		return node.SendHeaders, nil
	}
	return 0, fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, s)
}

func cryptocurrency(s string) (miner.Cryptocurrency, error) {
	switch strings.ToLower(s) {
	case "bitcoin", "btc":
		return miner.Bitcoin, nil
	case "litecoin", "ltc":
		return miner.Litecoin, nil
	case "dogecoin", "doge":
		return miner.Dogecoin, nil
	}
	return 0, fmt.Errorf("%w: unknown cryptocurrency %q", ErrInvalidConfig, s)
}

func broadcastType(s string) (miner.BroadcastType, error) {
	switch strings.ToLower(s) {
	case "standard":
		return miner.Standard, nil
	case "unsolicited":
		return miner.Unsolicited, nil
	case "relay", "relay_network":
		return miner.RelayNetwork, nil
	case "unsolicited_relay", "unsolicited_relay_network":
		return miner.UnsolicitedRelayNetwork, nil
	}
	return 0, fmt.Errorf("%w: unknown broadcast type %q", ErrInvalidConfig, s)
}

func minerKind(s string) (miner.Kind, error) {
	switch strings.ToLower(s) {
	case "", "honest":
		return miner.HonestMiner, nil
	case "selfish":
		return miner.SelfishMiner, nil
	case "trials":
		return miner.TrialsMiner, nil
	case "simple", "simple-attacker", "simple_attacker":
		return miner.SimpleAttacker, nil
	}
	return 0, fmt.Errorf("%w: unknown miner kind %q", ErrInvalidConfig, s)
}
