package plancatalog

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type tierFile struct {
	Tier             string   `mapstructure:"tier"`
	Name             string   `mapstructure:"name"`
	MonthlyPlans     int64    `mapstructure:"monthlyPlans"`
	MonthlyExports   int64    `mapstructure:"monthlyExports"`
	AdvancedFeatures bool     `mapstructure:"advancedFeatures"`
	PrioritySupport  bool     `mapstructure:"prioritySupport"`
	APIAccess        bool     `mapstructure:"apiAccess"`
	Price            int64    `mapstructure:"price"`
	Currency         string   `mapstructure:"currency"`
	Interval         string   `mapstructure:"interval"`
	Features         []string `mapstructure:"features"`
}

func (f tierFile) toConfig() TierConfig {
	interval := f.Interval
	if interval == "" {
		interval = "month"
	}
	return TierConfig{
		Tier:             Tier(f.Tier),
		Name:             f.Name,
		MonthlyPlans:     LimitFromSentinel(f.MonthlyPlans),
		MonthlyExports:   LimitFromSentinel(f.MonthlyExports),
		AdvancedFeatures: f.AdvancedFeatures,
		PrioritySupport:  f.PrioritySupport,
		APIAccess:        f.APIAccess,
		Price:            Price{Amount: f.Price, Currency: f.Currency, Interval: interval},
		Features:         f.Features,
	}
}

// Holder serves the catalog loaded from plans.yml and swaps it atomically
// when the file changes. Invalid edits are logged and ignored.
type Holder struct {
	current atomic.Pointer[Catalog]
	log     *zap.Logger
}

var _ Provider = (*Holder)(nil)

// NewHolder searches plans.yml in the volume, system and working directories.
// A missing file yields the built-in catalog.
func NewHolder(log *zap.Logger) (*Holder, error) {
	v := viper.New()
	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/planix/config")
	v.AddConfigPath("/etc/planix")
	v.AddConfigPath(".")

	h, err := newHolder(v, log)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			h.reload(v, e.Name)
		})
		v.WatchConfig()
	}
	return h, nil
}

func newHolder(v *viper.Viper, log *zap.Logger) (*Holder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Holder{log: log.Named("plancatalog")}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		h.current.Store(Default())
		h.log.Info("plans.yml not found, using built-in catalog")
		return h, nil
	}

	catalog, err := decode(v)
	if err != nil {
		return nil, err
	}
	h.current.Store(catalog)
	return h, nil
}

func (h *Holder) reload(v *viper.Viper, source string) {
	catalog, err := decode(v)
	if err != nil {
		h.log.Warn("invalid plan catalog ignored", zap.String("file", source), zap.Error(err))
		return
	}
	h.current.Store(catalog)
	h.log.Info("plan catalog reloaded", zap.String("file", source))
}

func decode(v *viper.Viper) (*Catalog, error) {
	var files []tierFile
	if err := v.UnmarshalKey("plans", &files); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	configs := make([]TierConfig, 0, len(files))
	for _, f := range files {
		configs = append(configs, f.toConfig())
	}
	return New(configs)
}

func (h *Holder) Lookup(tier Tier) TierConfig {
	return h.current.Load().Lookup(tier)
}

func (h *Holder) List() []TierConfig {
	return h.current.Load().List()
}
