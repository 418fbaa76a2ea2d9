// This file maps CLI context and config files to the launcher Config.

package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-peerz/integration"
	"github.com/rony4d/go-peerz/inter"
	"github.com/rony4d/go-peerz/protocol"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node       NodeConfig
	Protocol   ProtocolConfig
	Bridge     BridgeConfig
	Metrics    MetricsConfig
	Simulation SimulationConfig
}

type NodeConfig struct {
	DataDir  string
	StoreDir string
	Logging  LoggingConfig
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string `toml:",omitempty"`
}

// ProtocolConfig picks a preset and optionally overrides its rules. Empty
// and nil fields keep the preset value.
type ProtocolConfig struct {
	Network                string
	Cap                    string         `toml:",omitempty"`
	StartDelay             *time.Duration `toml:",omitempty"`
	ReportQuorum           string         `toml:",omitempty"`
	BatchQuorum            string         `toml:",omitempty"`
	GovernanceThresholdPct uint64         `toml:",omitempty"`
	ValidatorShareBps      *uint64        `toml:",omitempty"`
}

// BridgeConfig overrides the preset's bridge settings. Zero fields keep the
// preset value.
type BridgeConfig struct {
	L2Chain          uint16        `toml:",omitempty"`
	L1Chain          uint16        `toml:",omitempty"`
	BaseFee          string        `toml:",omitempty"`
	ByteFee          string        `toml:",omitempty"`
	DeliveryInterval time.Duration `toml:",omitempty"`
	StoreCacheMB     int           `toml:",omitempty"`
	StoreHandles     int           `toml:",omitempty"`
}

type MetricsConfig struct {
	Enable   bool
	HTTPAddr string
	HTTPPort int
}

type SimulationConfig struct {
	Peers      int
	Validators int
	Days       int
	Step       time.Duration
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir:  resolvePath(d.Node.DataDir),
			StoreDir: d.Node.StoreDir,
			Logging: LoggingConfig{
				Verbosity: d.Logging.Verbosity,
				Format:    d.Logging.Format,
				Color:     d.Logging.Color,
				SentryDSN: d.Logging.SentryDSN,
			},
		},
		Protocol: ProtocolConfig{
			Network: d.Protocol.Network,
		},
		Metrics: MetricsConfig{
			Enable:   d.Metrics.Enable,
			HTTPAddr: d.Metrics.HTTPAddr,
			HTTPPort: d.Metrics.HTTPPort,
		},
		Simulation: SimulationConfig{
			Peers:      d.Simulation.Peers,
			Validators: d.Simulation.Validators,
			Days:       d.Simulation.Days,
			Step:       d.Simulation.Step,
		},
	}
}

// MakeAllConfigs merges defaults, the optional config file and CLI flag
// overrides into a single config, and checks that it resolves to valid rules.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.String("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Preset(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Preset resolves the named network preset with every override applied.
func (c Config) Preset() (integration.PresetConfig, error) {
	preset, err := integration.GetPresetByName(c.Protocol.Network)
	if err != nil {
		return integration.PresetConfig{}, err
	}
	rules := &preset.Rules
	p := c.Protocol
	if p.Cap != "" {
		v, err := parseBig(p.Cap)
		if err != nil {
			return integration.PresetConfig{}, fmt.Errorf("cap: %w", err)
		}
		rules.Emission.Cap = v
	}
	if p.StartDelay != nil {
		rules.Emission.StartDelay = inter.Timestamp(*p.StartDelay / time.Second)
	}
	if p.ReportQuorum != "" {
		if rules.Attestation.ReportQuorum, err = parseFraction(p.ReportQuorum); err != nil {
			return integration.PresetConfig{}, fmt.Errorf("report quorum: %w", err)
		}
	}
	if p.BatchQuorum != "" {
		if rules.Attestation.BatchQuorum, err = parseFraction(p.BatchQuorum); err != nil {
			return integration.PresetConfig{}, fmt.Errorf("batch quorum: %w", err)
		}
	}
	if p.GovernanceThresholdPct != 0 {
		rules.Attestation.GovernanceThresholdPct = p.GovernanceThresholdPct
	}
	if p.ValidatorShareBps != nil {
		rules.Attestation.ValidatorShareBps = *p.ValidatorShareBps
	}

	b := c.Bridge
	if b.L2Chain != 0 {
		rules.Bridge.L2ChainID = b.L2Chain
	}
	if b.L1Chain != 0 {
		rules.Bridge.L1ChainID = b.L1Chain
	}
	if b.BaseFee != "" {
		if rules.Bridge.BaseFee, err = parseBig(b.BaseFee); err != nil {
			return integration.PresetConfig{}, fmt.Errorf("base fee: %w", err)
		}
	}
	if b.ByteFee != "" {
		if rules.Bridge.PerByteFee, err = parseBig(b.ByteFee); err != nil {
			return integration.PresetConfig{}, fmt.Errorf("byte fee: %w", err)
		}
	}
	if err := rules.Validate(); err != nil {
		return integration.PresetConfig{}, err
	}

	integration.ApplyPreset(&preset, integration.PresetConfig{
		DeliveryInterval: b.DeliveryInterval,
		StoreCacheMB:     b.StoreCacheMB,
		StoreHandles:     b.StoreHandles,
		EnableMetrics:    c.Metrics.Enable,
	})
	return preset, nil
}

// StorePath is the directory of the failed-message store.
func (c Config) StorePath() string {
	return filepath.Join(c.Node.DataDir, c.Node.StoreDir)
}

// -----------------------------------------------------------------------------
// Config-file / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return err
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.IsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.String("datadir"))
	}

	if ctx.IsSet("log.format") {
		cfg.Node.Logging.Format = ctx.String("log.format")
	}
	if ctx.IsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.Int("log.verbosity")
	}
	if ctx.IsSet("log.color") {
		cfg.Node.Logging.Color = ctx.Bool("log.color")
	}
	if ctx.IsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.String("sentry.dsn")
	}

	if ctx.IsSet("metrics") {
		cfg.Metrics.Enable = ctx.Bool("metrics")
	}
	if ctx.IsSet("metrics.addr") {
		cfg.Metrics.HTTPAddr = ctx.String("metrics.addr")
	}
	if ctx.IsSet("metrics.port") {
		cfg.Metrics.HTTPPort = ctx.Int("metrics.port")
	}

	if ctx.IsSet("network") {
		cfg.Protocol.Network = ctx.String("network")
	}
	if ctx.IsSet("emission.cap") {
		cfg.Protocol.Cap = ctx.String("emission.cap")
	}
	if ctx.IsSet("emission.startdelay") {
		d := ctx.Duration("emission.startdelay")
		cfg.Protocol.StartDelay = &d
	}
	if ctx.IsSet("quorum.report") {
		cfg.Protocol.ReportQuorum = ctx.String("quorum.report")
	}
	if ctx.IsSet("quorum.batch") {
		cfg.Protocol.BatchQuorum = ctx.String("quorum.batch")
	}
	if ctx.IsSet("governance.threshold") {
		cfg.Protocol.GovernanceThresholdPct = ctx.Uint64("governance.threshold")
	}
	if ctx.IsSet("validator.share") {
		v := ctx.Uint64("validator.share")
		cfg.Protocol.ValidatorShareBps = &v
	}

	if ctx.IsSet("bridge.l2chain") {
		id, err := chainID(ctx.Uint("bridge.l2chain"))
		if err != nil {
			return err
		}
		cfg.Bridge.L2Chain = id
	}
	if ctx.IsSet("bridge.l1chain") {
		id, err := chainID(ctx.Uint("bridge.l1chain"))
		if err != nil {
			return err
		}
		cfg.Bridge.L1Chain = id
	}
	if ctx.IsSet("bridge.basefee") {
		cfg.Bridge.BaseFee = ctx.String("bridge.basefee")
	}
	if ctx.IsSet("bridge.bytefee") {
		cfg.Bridge.ByteFee = ctx.String("bridge.bytefee")
	}
	if ctx.IsSet("bridge.interval") {
		cfg.Bridge.DeliveryInterval = ctx.Duration("bridge.interval")
	}
	if ctx.IsSet("store.cache") {
		cfg.Bridge.StoreCacheMB = ctx.Int("store.cache")
	}
	if ctx.IsSet("store.handles") {
		cfg.Bridge.StoreHandles = ctx.Int("store.handles")
	}

	if ctx.IsSet("sim.peers") {
		cfg.Simulation.Peers = ctx.Int("sim.peers")
	}
	if ctx.IsSet("sim.validators") {
		cfg.Simulation.Validators = ctx.Int("sim.validators")
	}
	if ctx.IsSet("sim.days") {
		cfg.Simulation.Days = ctx.Int("sim.days")
	}
	if ctx.IsSet("sim.step") {
		cfg.Simulation.Step = ctx.Duration("sim.step")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// parseFraction reads "num/den".
func parseFraction(s string) (protocol.Fraction, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return protocol.Fraction{}, fmt.Errorf("invalid fraction %q, want num/den", s)
	}
	num, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return protocol.Fraction{}, fmt.Errorf("invalid fraction %q: %w", s, err)
	}
	den, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return protocol.Fraction{}, fmt.Errorf("invalid fraction %q: %w", s, err)
	}
	return protocol.Fraction{Num: num, Den: den}, nil
}

func chainID(v uint) (uint16, error) {
	if v == 0 || v > 0xffff {
		return 0, fmt.Errorf("invalid bridge chain id %d", v)
	}
	return uint16(v), nil
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
