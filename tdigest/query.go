/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tdigest

import (
	"errors"
	"sort"
)

// Rank computes the approximate normalized rank (fraction of observations
// less than or equal to value) of value, in [0, 1].
func (d *Digest[F]) Rank(value F) (float64, error) {
	if d.IsEmpty() {
		return 0, ErrEmpty
	}
	v := float64(value)
	if isNaN(v) {
		return 0, ErrNaN
	}

	if value < d.min {
		return 0, nil
	}
	if value > d.max {
		return 1, nil
	}

	// one centroid and value == min == max
	if d.TotalWeight() == 1 {
		return 0.5, nil
	}

	d.Compress()

	if len(d.compressed) == 1 {
		return 0.5, nil
	}

	n := float64(d.compressedWeight)

	firstMean := d.compressed[0].mean
	if v < firstMean {
		firstWeight := float64(d.compressed[0].weight)
		if firstMean-float64(d.min) > 0 {
			if v == float64(d.min) {
				return 0.5 / n, nil
			}
			return (1.0 + (v-float64(d.min))/(firstMean-float64(d.min))*(firstWeight/2.0-1.0)) / n, nil
		}
		return 0, nil
	}

	lastMean := d.compressed[len(d.compressed)-1].mean
	if v > lastMean {
		lastWeight := float64(d.compressed[len(d.compressed)-1].weight)
		if float64(d.max)-lastMean > 0 {
			if v == float64(d.max) {
				return 1.0 - 0.5/n, nil
			}
			return 1.0 - (1.0+(float64(d.max)-v)/(float64(d.max)-lastMean)*(lastWeight/2.0-1.0))/n, nil
		}
		return 1, nil
	}

	lowerIdx := sort.Search(len(d.compressed), func(i int) bool {
		return d.compressed[i].mean >= v
	})
	if lowerIdx == len(d.compressed) {
		return 0, errors.New("tdigest: value is greater than all centroids")
	}

	upperIdx := sort.Search(len(d.compressed), func(i int) bool {
		return d.compressed[i].mean > v
	})
	if upperIdx == 0 {
		return 0, errors.New("tdigest: value is smaller than all centroids")
	}

	if v < d.compressed[lowerIdx].mean && lowerIdx > 0 {
		lowerIdx--
	}
	if upperIdx == len(d.compressed) || !(d.compressed[upperIdx-1].mean < v) {
		upperIdx--
	}

	var weightBelow float64
	for i := 0; i < lowerIdx; i++ {
		weightBelow += float64(d.compressed[i].weight)
	}
	weightBelow += float64(d.compressed[lowerIdx].weight) / 2.0

	var weightDelta float64
	for i := lowerIdx; i < upperIdx; i++ {
		weightDelta += float64(d.compressed[i].weight)
	}
	weightDelta -= float64(d.compressed[lowerIdx].weight) / 2.0
	weightDelta += float64(d.compressed[upperIdx].weight) / 2.0

	if d.compressed[upperIdx].mean-d.compressed[lowerIdx].mean > 0 {
		return (weightBelow + weightDelta*(v-d.compressed[lowerIdx].mean)/(d.compressed[upperIdx].mean-d.compressed[lowerIdx].mean)) / n, nil
	}
	return (weightBelow + weightDelta/2.0) / n, nil
}

// Quantile computes the approximate value at the given normalized rank.
func (d *Digest[F]) Quantile(rank float64) (F, error) {
	var zero F
	if d.IsEmpty() {
		return zero, ErrEmpty
	}
	if rank < 0.0 || rank > 1.0 {
		return zero, ErrInvalidRank
	}

	d.Compress()

	if rank == 0 {
		return d.min, nil
	}
	if rank == 1 {
		return d.max, nil
	}

	if len(d.compressed) == 1 {
		return F(d.compressed[0].mean), nil
	}

	n := float64(d.compressedWeight)
	weight := rank * n
	if weight < 1 {
		return d.min, nil
	}
	if weight > n-1.0 {
		return d.max, nil
	}

	firstWeight := float64(d.compressed[0].weight)
	if firstWeight > 1 && weight < firstWeight/2.0 {
		return F(float64(d.min) + (weight-1.0)/(firstWeight/2.0-1.0)*(d.compressed[0].mean-float64(d.min))), nil
	}

	lastWeight := float64(d.compressed[len(d.compressed)-1].weight)
	if lastWeight > 1 && n-weight <= lastWeight/2.0 {
		return F(float64(d.max) - (n-weight-1.0)/(lastWeight/2.0-1.0)*(float64(d.max)-d.compressed[len(d.compressed)-1].mean)), nil
	}

	weightSoFar := firstWeight / 2.0
	for i := 0; i < len(d.compressed)-1; i++ {
		dw := (float64(d.compressed[i].weight) + float64(d.compressed[i+1].weight)) / 2.0
		if weightSoFar+dw > weight {
			var leftWeight float64
			if d.compressed[i].weight == 1 {
				if weight-weightSoFar < 0.5 {
					return F(d.compressed[i].mean), nil
				}
				leftWeight = 0.5
			}
			var rightWeight float64
			if d.compressed[i+1].weight == 1 {
				if weightSoFar+dw-weight <= 0.5 {
					return F(d.compressed[i+1].mean), nil
				}
				rightWeight = 0.5
			}
			w1 := weight - weightSoFar - leftWeight
			w2 := weightSoFar + dw - weight - rightWeight
			return F(weightedAverage(d.compressed[i].mean, w2, d.compressed[i+1].mean, w1)), nil
		}
		weightSoFar += dw
	}

	w1 := weight - n - float64(d.compressed[len(d.compressed)-1].weight)/2.0
	w2 := float64(d.compressed[len(d.compressed)-1].weight)/2.0 - w1
	return F(weightedAverage(d.compressed[len(d.compressed)-1].mean, w1, float64(d.max), w2)), nil
}
