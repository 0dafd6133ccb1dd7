package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server Server `toml:"server"`
	Auth   Auth   `toml:"auth"`
	Engine Engine `toml:"engine"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Auth struct {
	JWTSecret      string `toml:"jwt_secret"`
	TokenExpiryMin int    `toml:"token_expiry_min"`
}

// Engine holds the economic and consensus parameters of the verdict engine.
type Engine struct {
	MinStake              int64 `toml:"min_stake"`
	MinAnalysesToResolve  int   `toml:"min_analyses_to_resolve"`
	ConsensusThresholdPct int64 `toml:"consensus_threshold_pct"`
	PlatformFeePct        int64 `toml:"platform_fee_pct"`
	MinBountyLeadTimeMin  int   `toml:"min_bounty_lead_time_min"`
	DisputePeriodHours    int   `toml:"dispute_period_hours"`
	MinDisputeStake       int64 `toml:"min_dispute_stake"`
	MinReputationToSubmit int   `toml:"min_reputation_to_submit"`
	ReanalysisWindowHours int   `toml:"reanalysis_window_hours"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr: ":8080",
		},
		Auth: Auth{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		Engine: Engine{
			MinStake:              10,
			MinAnalysesToResolve:  3,
			ConsensusThresholdPct: 70,
			PlatformFeePct:        5,
			MinBountyLeadTimeMin:  60,
			DisputePeriodHours:    168,
			MinDisputeStake:       100,
			MinReputationToSubmit: 50,
			ReanalysisWindowHours: 24,
		},
	}
}

// Load returns defaults overlaid with the TOML file at path, when present.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (e Engine) MinBountyLeadTime() time.Duration {
	return time.Duration(e.MinBountyLeadTimeMin) * time.Minute
}

func (e Engine) DisputePeriod() time.Duration {
	return time.Duration(e.DisputePeriodHours) * time.Hour
}

// ReanalysisWindow is how long a bounty reopened by an accepted dispute
// stays open for fresh analyses.
func (e Engine) ReanalysisWindow() time.Duration {
	return time.Duration(e.ReanalysisWindowHours) * time.Hour
}
