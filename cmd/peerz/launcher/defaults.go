package launcher

import (
	"time"
)

// Defaults bundles the baseline configuration values the launcher uses
// before config files and flags override them.

type Defaults struct {
	Node       NodeDefaults
	Protocol   ProtocolDefaults
	Metrics    MetricsDefaults
	Simulation SimulationDefaults
	Logging    LoggingDefaults
}

// NodeDefaults captures top-level process settings.

type NodeDefaults struct {
	DataDir  string //	Filesystem root for the failed-message store and simulation data. Changing it lets several simulations run side by side.
	StoreDir string //	Directory under DataDir holding the LevelDB failed-message store.
}

// ProtocolDefaults selects the network preset. Protocol parameters left
// unset in the config file and flags come from the preset.
type ProtocolDefaults struct {
	Network string //	Preset name (main, test, fake). Decides chain ids, fees, supply cap and quorums.
}

type MetricsDefaults struct {
	Enable   bool   //	Toggle for the metrics server; when true Prometheus metrics are served on HTTPAddr:HTTPPort.
	HTTPAddr string //	IP/interface the metrics server binds to (0.0.0.0 for all interfaces or 127.0.0.1 for local-only).
	HTTPPort int    //	TCP port scraped by Prometheus; default 6060.
}

// SimulationDefaults sizes the in-process simulation.
type SimulationDefaults struct {
	Peers      int           //	Number of peers registered at the start.
	Validators int           //	Number of fake validators in the genesis.
	Days       int           //	Simulated duration in days.
	Step       time.Duration //	Simulated time between rounds of reports and claims.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=panic, 1=fatal, 2=error, 3=warn, 4=info, 5=debug, 6=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs (helpful on terminals, best disabled when piping to files).
	SentryDSN string //	Sentry project DSN; errors are forwarded there when set.
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir:  "~/.peerz",
			StoreDir: "relay",
		},
		Protocol: ProtocolDefaults{
			Network: "fake",
		},
		Metrics: MetricsDefaults{
			Enable:   false,
			HTTPAddr: "127.0.0.1",
			HTTPPort: 6060,
		},
		Simulation: SimulationDefaults{
			Peers:      5,
			Validators: 3,
			Days:       120,
			Step:       24 * time.Hour,
		},
		Logging: LoggingDefaults{
			Verbosity: 4,
			Format:    "text",
			Color:     false,
		},
	}
}
