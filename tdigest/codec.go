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
	"io"
	"math"
)

// sketchTypeFor reports the native wire sketch-type byte for a Digest[F],
// disambiguating precision the way spec's design notes call for ("the wire
// format carries the precision implicitly via the sketch-type byte").
func sketchTypeFor[F Float]() (uint8, error) {
	switch any(F(0)).(type) {
	case float64:
		return sketchTypeDouble, nil
	case float32:
		return sketchTypeFloat, nil
	default:
		return 0, fmt.Errorf("%w: unsupported precision", ErrFormat)
	}
}

func putFloat[F Float](buf []byte, v F) {
	switch x := any(v).(type) {
	case float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
	case float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
	}
}

func sizeOfFloat[F Float]() int {
	switch any(F(0)).(type) {
	case float64:
		return 8
	case float32:
		return 4
	default:
		return 0
	}
}

func getFloat[F Float](buf []byte) F {
	var zero F
	switch any(zero).(type) {
	case float64:
		return F(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	case float32:
		return F(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	return zero
}

// SerializedSizeBytes computes the exact size in bytes that Serialize will
// write. It forces a Compress() first, since the wire format never carries
// a non-empty buffer.
func (d *Digest[F]) SerializedSizeBytes() int {
	d.Compress()

	w := sizeOfFloat[F]()
	size := 8 // fixed header: preamble, version, type, flags, k, unused
	if d.IsEmpty() {
		return size
	}
	size += 4 + 4 + 8 // compressed len, buffer len, total weight
	size += 2 * w      // min, max
	size += len(d.compressed) * (w + 8)
	return size
}

// Serialize writes the digest to w in the native binary format (the layout
// SerializeBytes produces), forcing a Compress() first.
func (d *Digest[F]) Serialize(w io.Writer) error {
	data, err := d.SerializeBytes(0)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SerializeBytes encodes the digest as a byte slice, reserving headerSize
// uninitialized bytes at the front for the caller's own use.
func (d *Digest[F]) SerializeBytes(headerSize int) ([]byte, error) {
	if headerSize < 0 {
		return nil, fmt.Errorf("%w: negative header size", ErrCapacity)
	}

	d.Compress()

	sketchType, err := sketchTypeFor[F]()
	if err != nil {
		return nil, err
	}

	size := headerSize + d.SerializedSizeBytes()
	buf := make([]byte, size)
	off := headerSize

	buf[off] = d.preambleLongs()
	buf[off+1] = serialVersion
	buf[off+2] = sketchType

	var flags uint8
	if d.IsEmpty() {
		flags |= 1 << flagIsEmpty
	}
	if d.reverseMerge {
		flags |= 1 << flagReverseMerge
	}
	buf[off+3] = flags

	binary.LittleEndian.PutUint16(buf[off+4:], d.k)
	// buf[off+6:off+8] left zero (unused/reserved)
	off += 8

	if d.IsEmpty() {
		return buf, nil
	}

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(d.compressed)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], 0) // buffer always drained on the wire
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], d.TotalWeight())
	off += 8

	w := sizeOfFloat[F]()
	putFloat(buf[off:], d.min)
	off += w
	putFloat(buf[off:], d.max)
	off += w

	for _, c := range d.compressed {
		putFloat(buf[off:], F(c.mean))
		off += w
	}
	for _, c := range d.compressed {
		binary.LittleEndian.PutUint64(buf[off:], c.weight)
		off += 8
	}

	return buf, nil
}

// Deserialize reads a digest previously written by Serialize (native
// format) or by the reference implementation's compat writer, auto
// detecting which.
func Deserialize[F Float](r io.Reader) (*Digest[F], error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DeserializeBytes[F](data)
}

// DeserializeBytes decodes a digest from a byte slice, in either the native
// or compat wire format.
func DeserializeBytes[F Float](data []byte) (*Digest[F], error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: insufficient data", ErrFormat)
	}

	preambleLongs := data[0]
	serialVer := data[1]
	skType := data[2]

	wantType, err := sketchTypeFor[F]()
	if err != nil {
		return nil, err
	}

	if skType != wantType {
		if preambleLongs == 0 && serialVer == 0 && skType == 0 {
			if len(data) < 4 {
				return nil, fmt.Errorf("%w: insufficient data for compat header", ErrFormat)
			}
			return deserializeCompat[F](data[3:])
		}
		return nil, fmt.Errorf("%w: sketch type mismatch (got %d, want %d)", ErrFormat, skType, wantType)
	}
	if serialVer != serialVersion {
		return nil, fmt.Errorf("%w: serial version mismatch", ErrFormat)
	}

	if len(data) < 8 {
		return nil, fmt.Errorf("%w: insufficient data for header", ErrFormat)
	}

	k := binary.LittleEndian.Uint16(data[4:])
	flagsByte := data[3]
	isEmpty := flagsByte&(1<<flagIsEmpty) != 0
	reverseMerge := flagsByte&(1<<flagReverseMerge) != 0

	expectedPreamble := preambleLongsMultiple
	if isEmpty {
		expectedPreamble = preambleLongsEmptyOrSingle
	}
	if preambleLongs != expectedPreamble {
		return nil, fmt.Errorf("%w: preamble longs mismatch", ErrFormat)
	}

	if isEmpty {
		return New[F](k)
	}

	off := 8
	if len(data) < off+16 {
		return nil, fmt.Errorf("%w: insufficient data for counts", ErrFormat)
	}
	numCentroids := binary.LittleEndian.Uint32(data[off:])
	off += 4
	numBuffered := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if numBuffered != 0 {
		return nil, fmt.Errorf("%w: non-empty buffer on the wire", ErrFormat)
	}
	totalWeight := binary.LittleEndian.Uint64(data[off:])
	off += 8

	w := sizeOfFloat[F]()
	if len(data) < off+2*w+int(numCentroids)*(w+8) {
		return nil, fmt.Errorf("%w: insufficient data for centroids", ErrFormat)
	}

	minVal := getFloat[F](data[off:])
	off += w
	if isNaN(float64(minVal)) {
		return nil, fmt.Errorf("%w: min is NaN", ErrFormat)
	}
	maxVal := getFloat[F](data[off:])
	off += w
	if isNaN(float64(maxVal)) {
		return nil, fmt.Errorf("%w: max is NaN", ErrFormat)
	}

	compressed := make([]centroid, numCentroids)
	for i := range compressed {
		mean := getFloat[F](data[off:])
		off += w
		if isNaN(float64(mean)) || isInf(float64(mean)) {
			return nil, fmt.Errorf("%w: centroid mean is NaN/Inf", ErrFormat)
		}
		compressed[i].mean = float64(mean)
	}
	var sumWeight uint64
	for i := range compressed {
		weight := binary.LittleEndian.Uint64(data[off:])
		off += 8
		if weight == 0 {
			return nil, fmt.Errorf("%w: centroid weight is zero", ErrFormat)
		}
		compressed[i].weight = weight
		sumWeight += weight
	}
	if sumWeight != totalWeight {
		return nil, fmt.Errorf("%w: declared weight %d does not match sum of centroid weights %d", ErrFormat, totalWeight, sumWeight)
	}

	internalK := k
	if useTwoLevelCompression {
		internalK = 2 * k
	}
	return newFromInternalState[F](reverseMerge, k, internalK, minVal, maxVal, compressed, totalWeight, nil, 0)
}
