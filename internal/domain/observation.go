// Package domain defines the input contract shared by every analysis module.
package domain

import "time"

// Observation is a single point of on-chain activity. Missing fields are
// simply zero; no constructor validation is performed.
type Observation struct {
	Timestamp         time.Time `json:"timestamp"`
	TransactionVolume float64   `json:"transaction_volume"`
	TransactionCount  float64   `json:"transaction_count"`
	MarketCap         float64   `json:"market_cap"`
	ActiveAddresses   float64   `json:"active_addresses"`
	AverageFee        float64   `json:"average_fee"`
	Price             float64   `json:"price"`
}

// Series is an ordered sequence of observations, oldest first. The caller
// owns the slice; analysis modules never mutate it.
type Series []Observation

// Len returns the number of observations
func (s Series) Len() int { return len(s) }

// Last returns the most recent observation, or a zero value for an empty series
func (s Series) Last() Observation {
	if len(s) == 0 {
		return Observation{}
	}
	return s[len(s)-1]
}

// Tail returns the last n observations (the whole series when shorter).
// The returned series aliases the receiver.
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Prefix returns the first n observations (the whole series when shorter)
func (s Series) Prefix(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (s Series) column(f func(Observation) float64) []float64 {
	out := make([]float64, len(s))
	for i, obs := range s {
		out[i] = f(obs)
	}
	return out
}

// Volumes extracts the transaction volume column
func (s Series) Volumes() []float64 {
	return s.column(func(o Observation) float64 { return o.TransactionVolume })
}

// Counts extracts the transaction count column
func (s Series) Counts() []float64 {
	return s.column(func(o Observation) float64 { return o.TransactionCount })
}

// MarketCaps extracts the market capitalization column
func (s Series) MarketCaps() []float64 {
	return s.column(func(o Observation) float64 { return o.MarketCap })
}

// Addresses extracts the active address column
func (s Series) Addresses() []float64 {
	return s.column(func(o Observation) float64 { return o.ActiveAddresses })
}

// Fees extracts the average fee column
func (s Series) Fees() []float64 {
	return s.column(func(o Observation) float64 { return o.AverageFee })
}

// Prices extracts the price column
func (s Series) Prices() []float64 {
	return s.column(func(o Observation) float64 { return o.Price })
}
