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
	"encoding/binary"
	"fmt"
	"math"
)

// deserializeCompat decodes the legacy asBytes()/asSmallBytes() layouts
// used by older tdigest writers. data[0] is the compat type flag
// (compatTypeDouble or compatTypeFloat); everything after is big-endian.
//
// Detection (in DeserializeBytes): when the native sketch-type byte doesn't
// match, three leading zero bytes (preamble, version and sketch type all
// zero) signal compat data rather than a corrupt native header; the compat
// type flag is the fourth byte.
func deserializeCompat[F Float](data []byte) (*Digest[F], error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: insufficient data for compat type", ErrFormat)
	}

	typeFlag := data[0]
	data = data[1:]

	switch typeFlag {
	case compatTypeDouble:
		if _, ok := any(F(0)).(float64); !ok {
			return nil, fmt.Errorf("%w: compat double payload requires a float64 digest", ErrFormat)
		}
		return decodeCompatDouble[F](data)
	case compatTypeFloat:
		if _, ok := any(F(0)).(float32); !ok {
			return nil, fmt.Errorf("%w: compat float payload requires a float32 digest", ErrFormat)
		}
		return decodeCompatFloat[F](data)
	default:
		return nil, fmt.Errorf("%w: unrecognized compat type %d", ErrFormat, typeFlag)
	}
}

// decodeCompatDouble parses the asBytes() layout: min, max, k (as a
// float64), centroid count, then (weight, mean) pairs, all float64 and
// big-endian.
func decodeCompatDouble[F Float](data []byte) (*Digest[F], error) {
	const headerSize = 8 + 8 + 8 + 4
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: insufficient data for compat double header", ErrFormat)
	}

	off := 0
	minVal := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
	off += 8
	maxVal := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
	off += 8
	k := uint16(math.Float64frombits(binary.BigEndian.Uint64(data[off:])))
	off += 8
	numCentroids := binary.BigEndian.Uint32(data[off:])
	off += 4

	if len(data) < off+int(numCentroids)*16 {
		return nil, fmt.Errorf("%w: insufficient data for compat double centroids", ErrFormat)
	}

	compressed := make([]centroid, numCentroids)
	var totalWeight uint64
	for i := range compressed {
		weight := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
		off += 8
		if weight == 0 {
			return nil, fmt.Errorf("%w: compat centroid weight is zero", ErrFormat)
		}
		mean := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
		off += 8
		if isNaN(mean) || isInf(mean) {
			return nil, fmt.Errorf("%w: compat centroid mean is NaN/Inf", ErrFormat)
		}
		compressed[i] = centroid{mean: mean, weight: uint64(weight)}
		totalWeight += uint64(weight)
	}

	internalK := k
	if useTwoLevelCompression {
		internalK = 2 * k
	}
	return newFromInternalState[F](false, k, internalK, F(minVal), F(maxVal), compressed, totalWeight, nil, 0)
}

// decodeCompatFloat parses the asSmallBytes() layout: min, max (float64),
// k and an unused field (float32/uint32), centroid count (uint16), then
// (weight, mean) pairs as float32, all big-endian.
func decodeCompatFloat[F Float](data []byte) (*Digest[F], error) {
	const headerSize = 8 + 8 + 4 + 4 + 2
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: insufficient data for compat float header", ErrFormat)
	}

	off := 0
	minVal := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
	off += 8
	maxVal := math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
	off += 8
	k := uint16(math.Float32frombits(binary.BigEndian.Uint32(data[off:])))
	off += 4
	off += 4 // unused
	numCentroids := binary.BigEndian.Uint16(data[off:])
	off += 2

	if len(data) < off+int(numCentroids)*8 {
		return nil, fmt.Errorf("%w: insufficient data for compat float centroids", ErrFormat)
	}

	compressed := make([]centroid, numCentroids)
	var totalWeight uint64
	for i := range compressed {
		weight := math.Float32frombits(binary.BigEndian.Uint32(data[off:]))
		off += 4
		if weight == 0 {
			return nil, fmt.Errorf("%w: compat centroid weight is zero", ErrFormat)
		}
		mean := math.Float32frombits(binary.BigEndian.Uint32(data[off:]))
		off += 4
		if isNaN(float64(mean)) || isInf(float64(mean)) {
			return nil, fmt.Errorf("%w: compat centroid mean is NaN/Inf", ErrFormat)
		}
		compressed[i] = centroid{mean: float64(mean), weight: uint64(weight)}
		totalWeight += uint64(weight)
	}

	internalK := k
	if useTwoLevelCompression {
		internalK = 2 * k
	}
	return newFromInternalState[F](false, k, internalK, F(minVal), F(maxVal), compressed, totalWeight, nil, 0)
}
