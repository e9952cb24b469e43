package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MATICBalanceGauge tracks the MATIC balance available for gas.
	MATICBalanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_wallet_matic_balance",
		Help: "Current MATIC balance in wallet (native units)",
	})

	// USDCBalanceGauge tracks the free USDC balance.
	USDCBalanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_wallet_usdc_balance",
		Help: "Current USDC balance in wallet (USD)",
	})

	// ActivePositionsGauge tracks the number of open positions.
	ActivePositionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_wallet_active_positions",
		Help: "Number of open positions",
	})
)
