package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// StartTransaction starts a new transaction
func (nr *NewRelicApp) StartTransaction(name string) *newrelic.Transaction {
	if !nr.IsEnabled() {
		return nil
	}
	return nr.Application.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.IsEnabled() {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Marketplace events

// RecordRidePosted records a driver posting a ride
func (nr *NewRelicApp) RecordRidePosted(seats int, pricePerSeat decimal.Decimal) {
	nr.RecordCustomEvent("RidePosted", map[string]interface{}{
		"seats":          seats,
		"price_per_seat": pricePerSeat.InexactFloat64(),
		"timestamp":      time.Now().Unix(),
	})
}

// RecordRequestAccepted records an accepted seat request
func (nr *NewRelicApp) RecordRequestAccepted(rideID string, seatsLeft int) {
	nr.RecordCustomEvent("RequestAccepted", map[string]interface{}{
		"ride_id":    rideID,
		"seats_left": seatsLeft,
	})
}

// RecordRideCompleted records ride settlement
func (nr *NewRelicApp) RecordRideCompleted(rideID string, price decimal.Decimal) {
	nr.RecordCustomEvent("RideCompleted", map[string]interface{}{
		"ride_id": rideID,
		"price":   price.InexactFloat64(),
	})
}

// RecordWalletMovement records a deposit or withdrawal
func (nr *NewRelicApp) RecordWalletMovement(kind string, amount decimal.Decimal) {
	nr.RecordCustomEvent("WalletMovement", map[string]interface{}{
		"kind":   kind,
		"amount": amount.InexactFloat64(),
	})
}

// RecordCommandRejected counts commands refused with a client error
func (nr *NewRelicApp) RecordCommandRejected(command, code string) {
	nr.RecordCustomMetric(fmt.Sprintf("custom/marketplace/rejected/%s/%s", command, code), 1)
}

// RecordSubscriptions records the number of live store subscriptions
func (nr *NewRelicApp) RecordSubscriptions(count int) {
	nr.RecordCustomMetric("custom/live/subscriptions", float64(count))
}

// RecordDatabasePoolStats records database connection pool statistics
func (nr *NewRelicApp) RecordDatabasePoolStats(stats map[string]interface{}) {
	if open, ok := stats["open_connections"].(int); ok {
		nr.RecordCustomMetric("custom/db/open_connections", float64(open))
	}
	if inUse, ok := stats["in_use"].(int); ok {
		nr.RecordCustomMetric("custom/db/in_use", float64(inUse))
	}
	if idle, ok := stats["idle"].(int); ok {
		nr.RecordCustomMetric("custom/db/idle", float64(idle))
	}
}

// RecordRedisPoolStats records Redis pool statistics
func (nr *NewRelicApp) RecordRedisPoolStats(stats map[string]interface{}) {
	if hits, ok := stats["hits"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/cache_hits", float64(hits))
	}
	if misses, ok := stats["misses"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/cache_misses", float64(misses))
	}
	if timeouts, ok := stats["timeouts"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/timeouts", float64(timeouts))
	}
}

// IsEnabled returns whether New Relic is enabled. It is safe on a nil app.
func (nr *NewRelicApp) IsEnabled() bool {
	return nr != nil && nr.enabled && nr.Application != nil
}
