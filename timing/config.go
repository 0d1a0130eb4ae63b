package timing

import (
	"encoding/json"
	"fmt"
	"os"
)

// SimConfig holds the latency model used by the simulated cache source.
// The defaults approximate an L1 hit and a main-memory miss on a modern
// out-of-order core.
type SimConfig struct {
	// HitLatency is the mean access latency when the line is resident.
	// Default: 40 cycles (includes the timer-read overhead).
	HitLatency uint64 `json:"hit_latency"`

	// MissLatency is the mean access latency when the line is not
	// resident. Default: 200 cycles.
	MissLatency uint64 `json:"miss_latency"`

	// HitNoiseSigma is the standard deviation of Gaussian noise added
	// to hit latencies. Default: 0 (deterministic).
	HitNoiseSigma float64 `json:"hit_noise_sigma"`

	// MissNoiseSigma is the standard deviation of Gaussian noise added
	// to miss latencies. Default: 0 (deterministic).
	MissNoiseSigma float64 `json:"miss_noise_sigma"`

	// Seed seeds the noise generator. Default: 1.
	Seed int64 `json:"seed"`
}

// DefaultSimConfig returns a SimConfig with noiseless default values.
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		HitLatency:  40,
		MissLatency: 200,
		Seed:        1,
	}
}

// LoadConfig loads a SimConfig from a JSON file. Fields absent from the
// file keep their default values.
func LoadConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultSimConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a SimConfig to a JSON file.
func (c *SimConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that the latency model is usable for classification.
func (c *SimConfig) Validate() error {
	if c.HitLatency == 0 {
		return fmt.Errorf("hit_latency must be > 0")
	}
	if c.MissLatency == 0 {
		return fmt.Errorf("miss_latency must be > 0")
	}
	if c.HitLatency >= c.MissLatency {
		return fmt.Errorf("hit_latency (%d) must be below miss_latency (%d)",
			c.HitLatency, c.MissLatency)
	}
	if c.HitNoiseSigma < 0 || c.MissNoiseSigma < 0 {
		return fmt.Errorf("noise sigma must not be negative")
	}
	return nil
}
