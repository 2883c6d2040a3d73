// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"blockwatch.cc/near-stake/pkg/near"
)

var (
	metricTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakepool",
		Name:      "total_staked_near",
		Help:      "NEAR value of all outstanding STAKE.",
	})
	metricTotalUnstaked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakepool",
		Name:      "total_unstaked_near",
		Help:      "Unstaked NEAR pending withdrawal, excluding liquidity.",
	})
	metricLiquidity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakepool",
		Name:      "unstaked_liquidity_near",
		Help:      "Unstaked NEAR that can be withdrawn right away.",
	})
	metricTreasury = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakepool",
		Name:      "treasury_balance_near",
		Help:      "NEAR value of the treasury STAKE.",
	})
	metricOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakepool",
		Name:      "online",
		Help:      "1 when the pool is online.",
	})
	metricEarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stakepool",
		Name:      "earnings_near_total",
		Help:      "Staking earnings detected by reconciliation.",
	})
	metricOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakepool",
		Name:      "operations_total",
		Help:      "Successful pool operations.",
	}, []string{"op"})
	metricStakeActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakepool",
		Name:      "stake_actions_total",
		Help:      "Validator stake actions by outcome.",
	}, []string{"result"})
)

var yoctoPerNear = new(big.Float).SetInt(near.Near(1).Int().ToBig())

func toNear(amount near.YoctoNear) float64 {
	f := new(big.Float).SetInt(amount.Int().ToBig())
	v, _ := f.Quo(f, yoctoPerNear).Float64()
	return v
}

func updateMetrics(st *State) {
	metricTotalStaked.Set(toNear(st.TotalStaked))
	metricTotalUnstaked.Set(toNear(st.TotalUnstaked))
	metricLiquidity.Set(toNear(st.UnstakedLiquidity))
	metricTreasury.Set(toNear(st.TreasuryBalance))
	if st.IsOnline() {
		metricOnline.Set(1)
	} else {
		metricOnline.Set(0)
	}
}
