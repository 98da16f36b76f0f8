package pricing

import (
	"github.com/pkg/errors"

	"github.com/zhaobenny/slurmusage/internal/model"
)

const (
	CPUPowerW   = 150
	GPUPowerW   = 400
	PricePerKWh = 0.40
)

// Rates holds the power draw and electricity price used for the cost overlay
type Rates struct {
	CPUPowerW   float64 `yaml:"cpu_power_w" json:"cpu_power_w"`
	GPUPowerW   float64 `yaml:"gpu_power_w" json:"gpu_power_w"`
	PricePerKWh float64 `yaml:"price_per_kwh" json:"price_per_kwh"`
}

// Overlay is the energy and monetary cost of some amount of usage
type Overlay struct {
	EnergyWh float64
	CostEUR  float64
}

// DefaultRates returns the built-in rates
func DefaultRates() Rates {
	return Rates{
		CPUPowerW:   CPUPowerW,
		GPUPowerW:   GPUPowerW,
		PricePerKWh: PricePerKWh,
	}
}

// WithDefaults fills unset (zero) rates from DefaultRates
func (r Rates) WithDefaults() Rates {
	d := DefaultRates()
	if r.CPUPowerW == 0 {
		r.CPUPowerW = d.CPUPowerW
	}
	if r.GPUPowerW == 0 {
		r.GPUPowerW = d.GPUPowerW
	}
	if r.PricePerKWh == 0 {
		r.PricePerKWh = d.PricePerKWh
	}
	return r
}

// Validate rejects rates that are not positive. Zero means unset and is
// replaced by WithDefaults, so it cannot be stored as a rate.
func (r Rates) Validate() error {
	if r.CPUPowerW <= 0 || r.GPUPowerW <= 0 || r.PricePerKWh <= 0 {
		return errors.Errorf("rates must be positive: cpu_power_w=%g gpu_power_w=%g price_per_kwh=%g",
			r.CPUPowerW, r.GPUPowerW, r.PricePerKWh)
	}
	return nil
}

// EnergyWh returns the energy consumed by the CPU- and GPU-hours of m.
// RAM-hours do not contribute.
func (r Rates) EnergyWh(m model.Metrics) float64 {
	return m.CPUHours*r.CPUPowerW + m.GPUHours*r.GPUPowerW
}

// CostEUR converts an energy amount into its price
func (r Rates) CostEUR(energyWh float64) float64 {
	return energyWh / 1000 * r.PricePerKWh
}

// Calculate computes the energy and cost overlay for m
func (r Rates) Calculate(m model.Metrics) Overlay {
	energy := r.EnergyWh(m)
	return Overlay{EnergyWh: energy, CostEUR: r.CostEUR(energy)}
}
