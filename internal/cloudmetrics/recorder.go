package cloudmetrics

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// usageMetrics are point-in-time gauges describing platform usage.
type usageMetrics struct {
	users         prometheus.Gauge
	plansUsed     prometheus.Gauge
	exportsUsed   prometheus.Gauge
	floorPlans    *prometheus.GaugeVec
	subscriptions *prometheus.GaugeVec
	memoryBytes   prometheus.Gauge
}

func newUsageMetrics(registerer prometheus.Registerer, instanceID, version string) *usageMetrics {
	constLabels := prometheus.Labels{
		"instance_id": normalizeLabel(instanceID),
		"version":     normalizeLabel(version),
	}
	m := &usageMetrics{
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "planix_users_total",
			Help:        "Registered users.",
			ConstLabels: constLabels,
		}),
		plansUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "planix_window_plans_used",
			Help:        "Plan generations charged in the current usage windows, summed over users.",
			ConstLabels: constLabels,
		}),
		exportsUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "planix_window_exports_used",
			Help:        "Exports charged in the current usage windows, summed over users.",
			ConstLabels: constLabels,
		}),
		floorPlans: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "planix_floor_plans",
			Help:        "Floor plans by lifecycle status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "planix_subscriptions",
			Help:        "Subscriptions by tier and status.",
			ConstLabels: constLabels,
		}, []string{"tier", "status"}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "planix_instance_memory_bytes",
			Help:        "Memory obtained from the OS by the reporting instance.",
			ConstLabels: constLabels,
		}),
	}
	registerer.MustRegister(m.users, m.plansUsed, m.exportsUsed, m.floorPlans, m.subscriptions, m.memoryBytes)
	return m
}

// CloudMetrics snapshots usage from the database into a private registry and
// hands it to the configured pusher.
type CloudMetrics struct {
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *usageMetrics
	pusher   Pusher
	log      *zap.Logger
}

func New(db *gorm.DB, pusher Pusher, instanceID, version string, log *zap.Logger) *CloudMetrics {
	if log == nil {
		log = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	return &CloudMetrics{
		db:       db,
		registry: registry,
		metrics:  newUsageMetrics(registry, instanceID, version),
		pusher:   pusher,
		log:      log.Named("cloud.metrics"),
	}
}

func (c *CloudMetrics) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

type userTotals struct {
	Users       int64
	PlansUsed   int64
	ExportsUsed int64
}

type statusCount struct {
	Tier   string
	Status string
	Count  int64
}

// Collect refreshes every gauge from the database.
func (c *CloudMetrics) Collect(ctx context.Context) error {
	if c == nil {
		return nil
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	c.metrics.memoryBytes.Set(float64(mem.Sys))

	if c.db == nil {
		return nil
	}
	db := c.db.WithContext(ctx)

	var totals userTotals
	if err := db.Raw(`
		SELECT COUNT(*) AS users,
		       COALESCE(SUM(plans_used), 0) AS plans_used,
		       COALESCE(SUM(exports_used), 0) AS exports_used
		FROM users
	`).Scan(&totals).Error; err != nil {
		return fmt.Errorf("collect user totals: %w", err)
	}
	c.metrics.users.Set(float64(totals.Users))
	c.metrics.plansUsed.Set(float64(totals.PlansUsed))
	c.metrics.exportsUsed.Set(float64(totals.ExportsUsed))

	var plans []statusCount
	if err := db.Raw(`
		SELECT status, COUNT(*) AS count
		FROM floor_plans
		GROUP BY status
	`).Scan(&plans).Error; err != nil {
		return fmt.Errorf("collect floor plan counts: %w", err)
	}
	c.metrics.floorPlans.Reset()
	for _, row := range plans {
		c.metrics.floorPlans.WithLabelValues(normalizeLabel(row.Status)).Set(float64(row.Count))
	}

	var subs []statusCount
	if err := db.Raw(`
		SELECT plan_tier AS tier, status, COUNT(*) AS count
		FROM subscriptions
		GROUP BY plan_tier, status
	`).Scan(&subs).Error; err != nil {
		return fmt.Errorf("collect subscription counts: %w", err)
	}
	c.metrics.subscriptions.Reset()
	for _, row := range subs {
		c.metrics.subscriptions.WithLabelValues(normalizeLabel(row.Tier), normalizeLabel(row.Status)).Set(float64(row.Count))
	}
	return nil
}

// Push collects a fresh snapshot and sends it. A nil pusher only collects.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.Collect(ctx); err != nil {
		return err
	}
	if c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
