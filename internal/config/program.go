package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProgramConfig holds the partner program settings that operators tune
// without a restart.
type ProgramConfig struct {
	DefaultCommissionRate string         `mapstructure:"defaultCommissionRate"`
	RankTiers             []RankTier     `mapstructure:"rankTiers"`
	LeadRateLimit         LeadRateLimit  `mapstructure:"leadRateLimit"`
	Notifications         ProgramNotices `mapstructure:"notifications"`
}

// RankTier is reached when both thresholds are met. MinEarnings is in minor units.
type RankTier struct {
	Name         string `mapstructure:"name"`
	MinEarnings  int64  `mapstructure:"minEarnings"`
	MinReferrals int    `mapstructure:"minReferrals"`
}

type LeadRateLimit struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type ProgramNotices struct {
	EmailTypes []string `mapstructure:"emailTypes"`
}

func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		DefaultCommissionRate: "10",
		RankTiers: []RankTier{
			{Name: "Bronze", MinEarnings: 0, MinReferrals: 0},
			{Name: "Silver", MinEarnings: 100_000, MinReferrals: 5},
			{Name: "Gold", MinEarnings: 500_000, MinReferrals: 15},
			{Name: "Platinum", MinEarnings: 2_000_000, MinReferrals: 40},
		},
		LeadRateLimit: LeadRateLimit{Rate: 0.5, Burst: 20},
		Notifications: ProgramNotices{
			EmailTypes: []string{"lead_converted", "account_approved", "commission_paid"},
		},
	}
}

type programFile struct {
	Program ProgramConfig `mapstructure:"program"`
}

type ProgramHolder struct {
	current atomic.Value // holds ProgramConfig
}

// NewStaticProgramHolder returns a holder that never reloads.
func NewStaticProgramHolder(cfg ProgramConfig) *ProgramHolder {
	holder := &ProgramHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewProgramHolder(appCfg Config) (*ProgramHolder, error) {
	v := viper.New()

	if appCfg.ProgramConfigPath != "" {
		v.SetConfigFile(appCfg.ProgramConfigPath)
	} else {
		v.SetConfigName("program")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/partnerhub")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PARTNERHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultProgramConfig()
	v.SetDefault("program.defaultCommissionRate", defaults.DefaultCommissionRate)
	v.SetDefault("program.rankTiers", defaults.RankTiers)
	v.SetDefault("program.leadRateLimit", defaults.LeadRateLimit)
	v.SetDefault("program.notifications", defaults.Notifications)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read program config: %w", err)
		}
		watch = false
	}

	var file programFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, err
	}
	cfg := file.Program
	if err := ValidateProgramConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticProgramHolder(cfg)
	if !watch {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var reloaded programFile
		if err := v.Unmarshal(&reloaded); err != nil {
			zap.L().Warn("program config reload failed", zap.Error(err))
			return
		}
		updated := reloaded.Program
		if err := ValidateProgramConfig(updated); err != nil {
			zap.L().Warn("invalid program config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("program config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *ProgramHolder) Get() ProgramConfig {
	if h == nil {
		return DefaultProgramConfig()
	}
	return h.current.Load().(ProgramConfig)
}

func ValidateProgramConfig(cfg ProgramConfig) error {
	if strings.TrimSpace(cfg.DefaultCommissionRate) == "" {
		return errors.New("program.defaultCommissionRate is required")
	}
	if len(cfg.RankTiers) == 0 {
		return errors.New("program.rankTiers cannot be empty")
	}
	for _, tier := range cfg.RankTiers {
		if strings.TrimSpace(tier.Name) == "" {
			return errors.New("program.rankTiers name is required")
		}
		if tier.MinEarnings < 0 || tier.MinReferrals < 0 {
			return fmt.Errorf("program.rankTiers %s thresholds must not be negative", tier.Name)
		}
	}
	if cfg.LeadRateLimit.Rate < 0 || cfg.LeadRateLimit.Burst < 0 {
		return errors.New("program.leadRateLimit must not be negative")
	}
	return nil
}
