package prediction

import "github.com/chainquant/nvtengine/pkg/formulas"

// RobustScaler centers by the median and scales by the interquartile range,
// keeping the heavy-tailed ratio features from dominating the linear models.
type RobustScaler struct {
	Medians []float64 `msgpack:"medians"`
	Scales  []float64 `msgpack:"scales"`
}

// FitScaler estimates per-feature medians and IQRs from the training rows.
func FitScaler(rows [][]float64) *RobustScaler {
	if len(rows) == 0 {
		return &RobustScaler{}
	}
	dim := len(rows[0])
	s := &RobustScaler{
		Medians: make([]float64, dim),
		Scales:  make([]float64, dim),
	}
	col := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		s.Medians[j] = formulas.Quantile(0.5, col)
		iqr := formulas.Quantile(0.75, col) - formulas.Quantile(0.25, col)
		if iqr <= 0 {
			iqr = 1 // constant feature passes through centered
		}
		s.Scales[j] = iqr
	}
	return s
}

// Transform scales one row.
func (s *RobustScaler) Transform(row []float64) []float64 {
	if len(s.Medians) == 0 {
		return append([]float64(nil), row...)
	}
	out := make([]float64, len(s.Medians))
	for j := range out {
		out[j] = (row[j] - s.Medians[j]) / s.Scales[j]
	}
	return out
}

// TransformAll scales a matrix of rows.
func (s *RobustScaler) TransformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.Transform(row)
	}
	return out
}
