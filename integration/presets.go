package integration

import (
	"fmt"
	"time"

	"github.com/rony4d/go-peerz/protocol"
)

// Package integration assembles a complete peerz deployment: both bridge
// endpoints, the consensus service with its relay sender, and the token with
// its relay receiver and governor. Presets bundle the protocol rules with the
// runtime settings that usually go with them (delivery cadence, relay store
// sizing, metrics) into named profiles.
//
// Usage:
//   cfg := integration.FakenetPreset()  // local simulation
//   cfg := integration.TestnetPreset()  // public test chains
//   cfg := integration.MainnetPreset()  // production
//
// Each preset returns a PresetConfig that the launcher merges into its main
// config before building the deployment.

// PresetConfig captures the settings that differ between networks.
type PresetConfig struct {
	Name             string         // preset identifier, also the rules name
	Rules            protocol.Rules // consensus-critical parameters
	DeliveryInterval time.Duration  // how often the bridge pump delivers queued packets
	StoreCacheMB     int            // LevelDB cache of the failed-message store
	StoreHandles     int            // LevelDB open file handles
	EnableMetrics    bool           // whether to expose Prometheus metrics
}

// DefaultPreset returns the fakenet rules with conservative runtime settings.
func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:             "default",
		Rules:            protocol.FakeNetRules(),
		DeliveryInterval: time.Second,
		StoreCacheMB:     16,
		StoreHandles:     16,
		EnableMetrics:    false,
	}
}

// FakenetPreset is for local simulation: rewards start at genesis, fees are
// nominal and packets are delivered quickly.
func FakenetPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "fake"
	cfg.Rules = protocol.FakeNetRules()
	cfg.DeliveryInterval = 100 * time.Millisecond
	cfg.EnableMetrics = true
	return cfg
}

// TestnetPreset mirrors mainnet economics on the public test chains.
func TestnetPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "test"
	cfg.Rules = protocol.TestNetRules()
	cfg.DeliveryInterval = 5 * time.Second
	cfg.StoreCacheMB = 64
	cfg.StoreHandles = 64
	cfg.EnableMetrics = true
	return cfg
}

// MainnetPreset returns the production profile. Bridge delivery on the real
// chains takes minutes, so the pump runs less often.
func MainnetPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "main"
	cfg.Rules = protocol.MainNetRules()
	cfg.DeliveryInterval = 30 * time.Second
	cfg.StoreCacheMB = 256
	cfg.StoreHandles = 256
	cfg.EnableMetrics = true
	return cfg
}

// GetPresetByName looks up a preset by its identifier.
//
// Example:
//
//	preset, err := integration.GetPresetByName("fake")
//	if err != nil {
//	    log.Fatal(err)
//	}
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "main", "mainnet":
		return MainnetPreset(), nil
	case "test", "testnet":
		return TestnetPreset(), nil
	case "fake", "fakenet":
		return FakenetPreset(), nil
	case "default":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: main, test, fake, default)", name)
	}
}

// ApplyPreset merges preset into target. Zero-valued preset fields leave the
// target alone; the rules are replaced as a whole when the preset has any.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.Rules.Emission.Cap != nil {
		target.Rules = preset.Rules.Copy()
	}
	if preset.DeliveryInterval > 0 {
		target.DeliveryInterval = preset.DeliveryInterval
	}
	if preset.StoreCacheMB > 0 {
		target.StoreCacheMB = preset.StoreCacheMB
	}
	if preset.StoreHandles > 0 {
		target.StoreHandles = preset.StoreHandles
	}
	// boolean flags are always applied
	target.EnableMetrics = preset.EnableMetrics
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
