package workload

import (
	"math/big"
	"slices"
	"time"

	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/sandbox"
	"github.com/crytic/schlau/sandbox/ledger"
	"github.com/shopspring/decimal"
)

// Measurement holds the per-iteration timings and costs of one workload.
type Measurement struct {
	// Name is the workload name.
	Name string

	// Backend is the runtime the workload ran on.
	Backend types.Backend

	// DeployDuration is the wall time of the deployment.
	DeployDuration time.Duration

	// Durations are the wall times of each call.
	Durations []time.Duration

	// GasUsed is the gas (EVM) or reference time weight (ledger) consumed by each call.
	GasUsed []uint64

	// Output is the return data of the last call.
	Output []byte
}

// Iterations returns the number of completed calls.
func (m *Measurement) Iterations() int {
	return len(m.Durations)
}

// OutputWords returns the last call's output as canonical big-endian 256-bit words, so outputs of the same
// workload on different backends compare equal. Ledger output wrapped in a message result envelope is unwrapped
// first.
func (m *Measurement) OutputWords() ([][sandbox.WordSize]byte, error) {
	if m.Backend == types.BackendEVM {
		return sandbox.CanonicalU256Words(m.Output, sandbox.BigEndian)
	}
	output := m.Output
	if len(output)%sandbox.WordSize == 1 {
		var err error
		if output, err = ledger.DecodeMessageResult(output); err != nil {
			return nil, err
		}
	}
	return sandbox.CanonicalU256Words(output, sandbox.LittleEndian)
}

var nanosPerMilli = decimal.NewFromInt(int64(time.Millisecond))

func milliseconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(nanosPerMilli)
}

// Summary is the aggregated timing of a workload, in milliseconds.
type Summary struct {
	Name       string
	Backend    types.Backend
	Iterations int
	Deploy     decimal.Decimal
	Mean       decimal.Decimal
	Median     decimal.Decimal
	Min        decimal.Decimal
	Max        decimal.Decimal
	Total      decimal.Decimal

	// MeanGas is the average gas or weight per call.
	MeanGas decimal.Decimal
}

// Summarize aggregates the measurement. A measurement without calls has zero timings.
func (m *Measurement) Summarize() Summary {
	summary := Summary{
		Name:       m.Name,
		Backend:    m.Backend,
		Iterations: m.Iterations(),
		Deploy:     milliseconds(m.DeployDuration),
	}
	if len(m.Durations) == 0 {
		return summary
	}

	sorted := slices.Clone(m.Durations)
	slices.Sort(sorted)
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	count := decimal.NewFromInt(int64(len(sorted)))

	summary.Total = milliseconds(total)
	summary.Mean = summary.Total.Div(count)
	summary.Min = milliseconds(sorted[0])
	summary.Max = milliseconds(sorted[len(sorted)-1])
	if middle := len(sorted) / 2; len(sorted)%2 == 1 {
		summary.Median = milliseconds(sorted[middle])
	} else {
		summary.Median = milliseconds(sorted[middle-1] + sorted[middle]).Div(decimal.NewFromInt(2))
	}

	gas := decimal.Zero
	for _, used := range m.GasUsed {
		gas = gas.Add(decimal.NewFromBigInt(new(big.Int).SetUint64(used), 0))
	}
	if len(m.GasUsed) > 0 {
		summary.MeanGas = gas.Div(decimal.NewFromInt(int64(len(m.GasUsed))))
	}
	return summary
}
