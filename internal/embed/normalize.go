package embed

import (
	"encoding/json"
	"fmt"
)

// normalizeVector collapses the JSON shapes a hosted feature-extraction
// endpoint is known to return into a single flat vector:
//
//   - [f, f, ...]             flat vector, used as-is
//   - [[f, f, ...]]           batch of one, unwrapped
//   - [[[f, ...], [f, ...]]]  batch × token × hidden, mean-pooled
//     across the token dimension
//
// Any other shape (empty, deeper nesting, mixed elements, batch of more
// than one) is ErrMalformedEmbedding.
func normalizeVector(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return nil, fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
		}
		return flat, nil
	}

	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err == nil {
		if len(batch) != 1 || len(batch[0]) == 0 {
			return nil, fmt.Errorf("%w: batch of %d vectors", ErrMalformedEmbedding, len(batch))
		}
		return batch[0], nil
	}

	var tensor [][][]float32
	if err := json.Unmarshal(raw, &tensor); err == nil {
		if len(tensor) != 1 {
			return nil, fmt.Errorf("%w: tensor batch of %d", ErrMalformedEmbedding, len(tensor))
		}
		return meanPool(tensor[0])
	}

	return nil, fmt.Errorf("%w: unrecognized shape", ErrMalformedEmbedding)
}

// meanPool averages token-level vectors into a single fixed-length vector.
func meanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, fmt.Errorf("%w: empty token tensor", ErrMalformedEmbedding)
	}

	dim := len(tokens[0])
	pooled := make([]float32, dim)
	for _, tok := range tokens {
		if len(tok) != dim {
			return nil, fmt.Errorf("%w: ragged token tensor", ErrMalformedEmbedding)
		}
		for i, v := range tok {
			pooled[i] += v
		}
	}

	n := float32(len(tokens))
	for i := range pooled {
		pooled[i] /= n
	}
	return pooled, nil
}
