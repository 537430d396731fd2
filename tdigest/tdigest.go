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

// Package tdigest provides a streaming, mergeable sketch for estimating
// quantiles and ranks over an unbounded sequence of floating-point
// observations with bounded memory.
//
// This implementation is based on the paper:
// Ted Dunning, Otmar Ertl. "Extremely Accurate Quantiles Using t-Digests"
// and the reference implementation: https://github.com/tdunning/t-digest
// It is similar to MergingDigest in the Java implementation referenced
// above, and to the C++ tdigest in the Apache DataSketches library.
package tdigest

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

const (
	// DefaultK is the compression parameter used when none is supplied.
	DefaultK = 200
	// minK is the smallest compression parameter accepted by New.
	minK = 10

	// bufferMultiplier sets buffer capacity relative to compressed
	// capacity. Spec calls for a band of roughly 5-10; 5 keeps memory
	// closer to the accuracy-sensitive end of that band.
	bufferMultiplier = 5

	// useTwoLevelCompression and useAlternatingSort mirror the constants of
	// the same name in the reference C++ header (datasketches tdigest.hpp).
	// They are not exposed for configuration. There is no useWeightLimit
	// constant: coalesce implements weight-limit mode only.
	useTwoLevelCompression = true
	useAlternatingSort     = true
)

const (
	preambleLongsEmptyOrSingle uint8 = 1
	preambleLongsMultiple      uint8 = 2
	serialVersion              uint8 = 1

	sketchTypeDouble uint8 = 20
	sketchTypeFloat  uint8 = 21

	compatTypeDouble uint8 = 1
	compatTypeFloat  uint8 = 2
)

const (
	flagIsEmpty uint8 = iota
	flagReverseMerge
)

var (
	// ErrEmpty is returned by operations that are undefined on an empty digest.
	ErrEmpty = errors.New("tdigest: operation is undefined for an empty digest")
	// ErrNaN is returned when a NaN value is supplied to Update.
	ErrNaN = errors.New("tdigest: NaN is not a valid observation")
	// ErrInfinity is returned when a +/-Inf value is supplied to Update.
	ErrInfinity = errors.New("tdigest: +/-Inf is not a valid observation")
	// ErrInvalidRank is returned when a rank outside [0, 1] is requested.
	ErrInvalidRank = errors.New("tdigest: rank must be between 0 and 1 inclusive")
	// ErrInvalidK is returned when k is below the minimum compression parameter.
	ErrInvalidK = errors.New("tdigest: k must be at least 10")
	// ErrFormat wraps every decode-time structural failure (bad version,
	// unrecognized sketch type, impossible lengths, inconsistent weights).
	ErrFormat = errors.New("tdigest: malformed serialized digest")
	// ErrCapacity is returned when a requested serialized size cannot be
	// satisfied.
	ErrCapacity = errors.New("tdigest: requested size exceeds capacity")

	errNaNInSplitPoints   = errors.New("tdigest: NaN in split points")
	errInvalidSplitPoints = errors.New("tdigest: split points must be unique and strictly increasing")
)

// Float is the set of types a Digest can be instantiated over.
type Float = constraints.Float

// centroid summarizes a contiguous run of observations by their mean and
// combined weight. Means are always tracked at float64 precision regardless
// of a Digest's F: only the reported min, max and quantile/rank boundary
// values are narrowed to F. This keeps the weighted-mean update numerically
// stable for Digest[float32] without special-casing the merge engine.
type centroid struct {
	mean   float64
	weight uint64
}

func (c *centroid) add(other centroid) {
	c.weight += other.weight
	c.mean += (other.mean - c.mean) * float64(other.weight) / float64(c.weight)
}

// Digest is a t-Digest sketch parameterized by the floating-point precision
// used to store min/max, to report quantile values, and to write centroid
// means on the wire (in memory, centroid means are float64; see centroid).
//
// A Digest is not safe for concurrent use: mutating methods (Update, Merge,
// Compress) must not run concurrently with each other or with readers.
type Digest[F Float] struct {
	k         uint16
	internalK uint16

	min F
	max F

	compressed       []centroid
	compressedWeight uint64

	buffer         []centroid
	bufferedWeight uint64

	compressedCapacity int
	bufferCapacity     int

	reverseMerge bool
}

// New creates an empty Digest with the given compression parameter k.
// k must be at least 10; DefaultK (200) is a reasonable default for callers
// with no specific accuracy/size target.
func New[F Float](k uint16) (*Digest[F], error) {
	if k < minK {
		return nil, ErrInvalidK
	}

	internalK := k
	if useTwoLevelCompression {
		internalK = 2 * k
	}

	compressedCapacity := centroidCapacity(internalK)

	return &Digest[F]{
		k:                  k,
		internalK:          internalK,
		min:                positiveInfinity[F](),
		max:                negativeInfinity[F](),
		compressedCapacity: compressedCapacity,
		compressed:         make([]centroid, 0, compressedCapacity),
		buffer:             make([]centroid, 0, compressedCapacity*bufferMultiplier),
		bufferCapacity:     compressedCapacity * bufferMultiplier,
	}, nil
}

// NewDouble creates a double-precision (float64) Digest, mirroring the
// reference implementation's primary type.
func NewDouble(k uint16) (*Digest[float64], error) { return New[float64](k) }

// NewFloat creates a single-precision (float32) Digest.
func NewFloat(k uint16) (*Digest[float32], error) { return New[float32](k) }

// Double is the double-precision instantiation of Digest.
type Double = Digest[float64]

// FloatDigest is the single-precision instantiation of Digest.
type FloatDigest = Digest[float32]

func centroidCapacity(k uint16) int {
	fudge := 10
	if k < 30 {
		fudge = 30
	}
	return 2*int(k) + fudge
}

func newFromInternalState[F Float](
	reverseMerge bool,
	k uint16,
	internalK uint16,
	min, max F,
	compressed []centroid,
	compressedWeight uint64,
	buffer []centroid,
	bufferedWeight uint64,
) (*Digest[F], error) {
	if k < minK {
		return nil, ErrInvalidK
	}

	compressedCapacity := centroidCapacity(internalK)
	if cap(compressed) < compressedCapacity {
		grown := make([]centroid, len(compressed), compressedCapacity)
		copy(grown, compressed)
		compressed = grown
	}

	bufferCapacity := compressedCapacity * bufferMultiplier
	if buffer == nil {
		buffer = make([]centroid, 0, bufferCapacity)
	} else if cap(buffer) < bufferCapacity {
		grown := make([]centroid, len(buffer), bufferCapacity)
		copy(grown, buffer)
		buffer = grown
	}

	return &Digest[F]{
		k:                  k,
		internalK:          internalK,
		min:                min,
		max:                max,
		compressed:         compressed,
		compressedWeight:   compressedWeight,
		buffer:             buffer,
		bufferedWeight:     bufferedWeight,
		compressedCapacity: compressedCapacity,
		bufferCapacity:     bufferCapacity,
		reverseMerge:       reverseMerge,
	}, nil
}

// Update adds a single observation to the digest.
func (d *Digest[F]) Update(value F) error {
	v := float64(value)
	if isNaN(v) {
		return ErrNaN
	}
	if isInf(v) {
		return ErrInfinity
	}

	if len(d.buffer) == d.bufferCapacity {
		d.mergeBuffered(d.internalK)
	}

	d.buffer = append(d.buffer, centroid{mean: v, weight: 1})
	d.bufferedWeight++

	if value < d.min {
		d.min = value
	}
	if value > d.max {
		d.max = value
	}

	return nil
}

// Merge folds other's data into d. other is not modified: its buffer,
// compressed centroids and accounting are left as they were.
func (d *Digest[F]) Merge(other *Digest[F]) error {
	if other.IsEmpty() {
		return ErrEmpty
	}

	d.buffer = append(d.buffer, other.buffer...)
	d.buffer = append(d.buffer, other.compressed...)
	d.bufferedWeight += other.bufferedWeight + other.compressedWeight

	if other.min < d.min {
		d.min = other.min
	}
	if other.max > d.max {
		d.max = other.max
	}

	d.mergeBuffered(d.internalK)
	return nil
}

// Compress forces all buffered observations into the compressed centroid
// array, then (two-level compression) runs a second collapsing pass at the
// nominal k so that the compressed array's length settles back toward k
// rather than internalK. It is idempotent when the buffer is already empty.
func (d *Digest[F]) Compress() {
	d.mergeBuffered(d.internalK)

	if useTwoLevelCompression && len(d.compressed) > 0 && d.internalK != d.k {
		d.compressed = coalesce(d.compressed, d.compressedWeight, d.k)
	}
}

// IsEmpty reports whether the digest has seen any data.
func (d *Digest[F]) IsEmpty() bool {
	return len(d.compressed) == 0 && len(d.buffer) == 0
}

// MinValue returns the smallest observation seen so far.
func (d *Digest[F]) MinValue() (F, error) {
	if d.IsEmpty() {
		var zero F
		return zero, ErrEmpty
	}
	return d.min, nil
}

// MaxValue returns the largest observation seen so far.
func (d *Digest[F]) MaxValue() (F, error) {
	if d.IsEmpty() {
		var zero F
		return zero, ErrEmpty
	}
	return d.max, nil
}

// TotalWeight returns the total number of observations folded into the
// digest, including buffered ones not yet compressed.
func (d *Digest[F]) TotalWeight() uint64 {
	return d.compressedWeight + d.bufferedWeight
}

// K returns the nominal compression parameter.
func (d *Digest[F]) K() uint16 {
	return d.k
}

// CDF returns an approximation to the cumulative distribution function of
// the input stream evaluated at each of splitPoints, with a trailing 1
// appended for the interval above the last split point.
func (d *Digest[F]) CDF(splitPoints []F) ([]float64, error) {
	if err := validateSplitPoints(splitPoints); err != nil {
		return nil, err
	}
	ranks := make([]float64, 0, len(splitPoints)+1)
	for _, sp := range splitPoints {
		rank, err := d.Rank(sp)
		if err != nil {
			return nil, err
		}
		ranks = append(ranks, rank)
	}
	ranks = append(ranks, 1)
	return ranks, nil
}

// PMF returns an approximation to the probability mass function of the
// input stream, i.e. the successive differences of CDF.
func (d *Digest[F]) PMF(splitPoints []F) ([]float64, error) {
	buckets, err := d.CDF(splitPoints)
	if err != nil {
		return nil, err
	}
	for i := len(splitPoints); i > 0; i-- {
		buckets[i] -= buckets[i-1]
	}
	return buckets, nil
}

// String returns a human-readable summary of the digest. When
// includeCentroids is true, every compressed centroid and buffered value is
// listed as well.
func (d *Digest[F]) String(includeCentroids bool) string {
	var sb strings.Builder
	sb.WriteString("### t-Digest summary:\n")
	fmt.Fprintf(&sb, "   k                  : %d\n", d.k)
	fmt.Fprintf(&sb, "   internal k         : %d\n", d.internalK)
	fmt.Fprintf(&sb, "   Centroids          : %d\n", len(d.compressed))
	fmt.Fprintf(&sb, "   Buffered           : %d\n", len(d.buffer))
	fmt.Fprintf(&sb, "   Centroids capacity : %d\n", d.compressedCapacity)
	fmt.Fprintf(&sb, "   Buffer capacity    : %d\n", d.bufferCapacity)
	fmt.Fprintf(&sb, "   Total weight       : %d\n", d.TotalWeight())
	fmt.Fprintf(&sb, "   Reverse merge      : %v\n", d.reverseMerge)
	if !d.IsEmpty() {
		fmt.Fprintf(&sb, "   Min                : %v\n", d.min)
		fmt.Fprintf(&sb, "   Max                : %v\n", d.max)
	}
	sb.WriteString("### End t-Digest summary\n")

	if includeCentroids {
		if len(d.compressed) > 0 {
			sb.WriteString("Centroids:\n")
			for i, c := range d.compressed {
				fmt.Fprintf(&sb, "%d: %v, %d\n", i, c.mean, c.weight)
			}
		}
		if len(d.buffer) > 0 {
			sb.WriteString("Buffer:\n")
			for i, c := range d.buffer {
				fmt.Fprintf(&sb, "%d: %v\n", i, c.mean)
			}
		}
	}
	return sb.String()
}

func (d *Digest[F]) preambleLongs() uint8 {
	if d.IsEmpty() {
		return preambleLongsEmptyOrSingle
	}
	return preambleLongsMultiple
}

func validateSplitPoints[F Float](values []F) error {
	for i, v := range values {
		if isNaN(float64(v)) {
			return errNaNInSplitPoints
		}
		if i < len(values)-1 && !(v < values[i+1]) {
			return errInvalidSplitPoints
		}
	}
	return nil
}
