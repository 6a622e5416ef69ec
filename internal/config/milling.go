package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MillingConfig holds operator-tunable milling yield settings.
type MillingConfig struct {
	// YieldTolerancePercent is the allowed deviation, in percentage points,
	// for both the percent-sum and per-output quantity checks.
	YieldTolerancePercent float64 `mapstructure:"yieldTolerancePercent"`
}

func DefaultMillingConfig() MillingConfig {
	return MillingConfig{
		YieldTolerancePercent: 0.5,
	}
}

// MillingConfigHolder exposes the current milling config with hot reload.
type MillingConfigHolder struct {
	current atomic.Value // holds MillingConfig
}

func NewMillingConfigHolder() (*MillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("milling")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/millbook/config") // Volume-mounted config
	v.AddConfigPath("/etc/millbook")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("MILLBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg, err := millingConfigFromViper(v)
	if err != nil {
		return nil, err
	}

	holder := &MillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := millingConfigFromViper(v)
		if err != nil {
			log.Printf("[milling-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[milling-config] reloaded: tolerance=%.3f", updated.YieldTolerancePercent)
	})

	return holder, nil
}

// millingConfigFromViper decodes the milling section over the defaults, so a
// file without the section (or without a field) keeps the stock values
// instead of zeroing them.
func millingConfigFromViper(v *viper.Viper) (MillingConfig, error) {
	cfg := DefaultMillingConfig()
	if err := v.UnmarshalKey("milling", &cfg); err != nil {
		return MillingConfig{}, err
	}
	if err := validateMillingConfig(cfg); err != nil {
		return MillingConfig{}, err
	}
	return cfg, nil
}

// NewStaticMillingConfigHolder wraps a fixed config, used by tests.
func NewStaticMillingConfigHolder(cfg MillingConfig) *MillingConfigHolder {
	holder := &MillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *MillingConfigHolder) Current() MillingConfig {
	if h == nil {
		return DefaultMillingConfig()
	}
	if cfg, ok := h.current.Load().(MillingConfig); ok {
		return cfg
	}
	return DefaultMillingConfig()
}

func validateMillingConfig(cfg MillingConfig) error {
	if cfg.YieldTolerancePercent < 0 {
		return errors.New("milling.yieldTolerancePercent must not be negative")
	}
	if cfg.YieldTolerancePercent > 100 {
		return errors.New("milling.yieldTolerancePercent must not exceed 100")
	}
	return nil
}
