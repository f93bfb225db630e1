package scan

import (
	"fmt"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/codec"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
)

// NewStages builds the default normalize, decode and detect pipeline.
func NewStages(ncfg normalize.Config, fallback codec.FallbackPolicy, opts barcode.Options) (Stages, error) {
	n, err := normalize.New(ncfg)
	if err != nil {
		return Stages{}, fmt.Errorf("normalizer: %w", err)
	}
	return Stages{
		Normalizer: n,
		Decoder:    codec.NewDecoder(fallback),
		Detector:   barcode.NewDetector(nil, opts),
	}, nil
}
