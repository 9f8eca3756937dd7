package embedding

import "math"

// meanPool averages hidden states over positions where mask == 1.
// hidden is flat [seqLen * dim].
func meanPool(hidden []float32, mask []int64, seqLen, dim int) []float64 {
	out := make([]float64, dim)
	var count float64
	for s := 0; s < seqLen; s++ {
		if mask[s] != 1 {
			continue
		}
		count++
		off := s * dim
		for d := 0; d < dim; d++ {
			out[d] += float64(hidden[off+d])
		}
	}
	if count == 0 {
		return out
	}
	for d := range out {
		out[d] /= count
	}
	return out
}

func l2Normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	inv := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] *= inv
	}
}
