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

import "slices"

func centroidSortFunc(a, b centroid) int {
	if a.mean < b.mean {
		return -1
	} else if a.mean > b.mean {
		return 1
	}
	return 0
}

// mergeBuffered is the only mutator of d.compressed. It drains d.buffer
// (appending the current d.compressed first, so all mass is considered
// together), sorts it, and coalesces it under the scale function's weight
// bound computed against compression.
func (d *Digest[F]) mergeBuffered(compression uint16) {
	if len(d.buffer) == 0 {
		return
	}

	all := make([]centroid, 0, len(d.buffer)+len(d.compressed))
	all = append(all, d.buffer...)
	all = append(all, d.compressed...)

	n := d.compressedWeight + d.bufferedWeight

	slices.SortStableFunc(all, centroidSortFunc)
	if useAlternatingSort && d.reverseMerge {
		reverseCentroids(all)
	}

	result := coalesce(all, n, compression)

	if useAlternatingSort && d.reverseMerge {
		reverseCentroids(result)
	}

	if F(result[0].mean) < d.min {
		d.min = F(result[0].mean)
	}
	if F(result[len(result)-1].mean) > d.max {
		d.max = F(result[len(result)-1].mean)
	}

	d.compressed = result
	d.compressedWeight = n
	d.buffer = d.buffer[:0]
	d.bufferedWeight = 0

	if useAlternatingSort {
		d.reverseMerge = !d.reverseMerge
	}
}

// coalesce scans items (already sorted ascending, or descending if the
// caller is running an alternating-sort pass) and merges adjacent centroids
// whenever doing so keeps the resulting weight under the scale function's
// cap for both the rank before and the rank after the merge. The very first
// and very last transitions never merge, whatever the weights, which keeps the
// global min/max-adjacent centroids as tight as the data allows (weight 1
// singletons whenever the extremes are singleton observations).
//
// This is weight-limit mode (spec's Option A / the reference's
// USE_WEIGHT_LIMIT=true). It is the only coalescing mode implemented; there
// is no rank-limit mode.
func coalesce(items []centroid, n uint64, compression uint16) []centroid {
	sf := scaleFunction{}
	normalizer := sf.normalizer(float64(compression), float64(n))

	result := make([]centroid, 0, len(items))
	result = append(result, items[0])

	var weightSoFar float64
	for i := 1; i < len(items); i++ {
		cur := &result[len(result)-1]
		proposedWeight := float64(cur.weight) + float64(items[i].weight)

		addThis := false
		if i != 1 && i != len(items)-1 {
			q0 := weightSoFar / float64(n)
			q2 := (weightSoFar + proposedWeight) / float64(n)
			addThis = proposedWeight <= float64(n)*min(sf.max(q0, normalizer), sf.max(q2, normalizer))
		}

		if addThis {
			cur.add(items[i])
		} else {
			weightSoFar += float64(cur.weight)
			result = append(result, items[i])
		}
	}

	return result
}

func reverseCentroids(s []centroid) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
