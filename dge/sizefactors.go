package dge

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// EstimateSizeFactors computes per-sample size factors by the
// median-of-ratios (relative log expression) method: each gene with
// all-positive counts contributes the ratio of its count to its geometric
// mean across samples, and a sample's factor is the median of its ratios.
//
// "Differential expression analysis for sequence count data", Simon Anders
// and Wolfgang Huber, http://genomebiology.com/2010/11/10/r106.
func (ds *DataSet) EstimateSizeFactors() error {
	m := ds.Matrix
	nSamples := len(m.Samples)

	logRatios := make([][]float64, nSamples)
	for j := range logRatios {
		logRatios[j] = make([]float64, 0, len(m.Genes))
	}

	for _, row := range m.Counts {
		var logGeoMean float64
		usable := true
		for _, v := range row {
			if v <= 0 {
				usable = false
				break
			}
			logGeoMean += math.Log(v)
		}
		if !usable {
			continue
		}
		logGeoMean /= float64(nSamples)

		for j, v := range row {
			logRatios[j] = append(logRatios[j], math.Log(v)-logGeoMean)
		}
	}

	if len(logRatios[0]) == 0 {
		return fmt.Errorf("dge: no gene has positive counts in every sample; cannot estimate size factors")
	}

	factors := make([]float64, nSamples)
	for j, ratios := range logRatios {
		median, err := stats.Median(ratios)
		if err != nil {
			return fmt.Errorf("dge: size factor for sample %s: %s", m.Samples[j], err)
		}
		factors[j] = math.Exp(median)
	}

	ds.SizeFactors = factors
	ds.normalized = nil

	return nil
}
