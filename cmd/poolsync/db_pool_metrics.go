package main

import (
	"database/sql"
	"fmt"

	"github.com/mobiusAMM/mobius-pool-registry/internal/domain/model"
	"github.com/mobiusAMM/mobius-pool-registry/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type dbStatsProvider interface {
	Stats() sql.DBStats
}

type dbPoolStatsGauges struct {
	open         *prometheus.GaugeVec
	inUse        *prometheus.GaugeVec
	idle         *prometheus.GaugeVec
	waitCount    *prometheus.GaugeVec
	waitDuration *prometheus.GaugeVec
}

func defaultDBPoolStatsGauges() dbPoolStatsGauges {
	return dbPoolStatsGauges{
		open:         metrics.DBPoolOpenConnections,
		inUse:        metrics.DBPoolInUse,
		idle:         metrics.DBPoolIdle,
		waitCount:    metrics.DBPoolWaitCount,
		waitDuration: metrics.DBPoolWaitDuration,
	}
}

func collectDBPoolStats(db dbStatsProvider, network model.Network, gauges dbPoolStatsGauges) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return fmt.Errorf("db stats provider is nil")
	}

	stats := db.Stats()
	label := string(network)
	gauges.open.WithLabelValues(label).Set(float64(stats.OpenConnections))
	gauges.inUse.WithLabelValues(label).Set(float64(stats.InUse))
	gauges.idle.WithLabelValues(label).Set(float64(stats.Idle))
	gauges.waitCount.WithLabelValues(label).Set(float64(stats.WaitCount))
	gauges.waitDuration.WithLabelValues(label).Set(stats.WaitDuration.Seconds())
	return nil
}
