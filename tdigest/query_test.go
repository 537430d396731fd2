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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		_, err := d.Rank(0.5)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("NaN Value", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(1.0))
		_, err := d.Rank(math.NaN())
		assert.ErrorIs(t, err, ErrNaN)
	})

	t.Run("Single Value", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(5.0))

		rank, err := d.Rank(5.0)
		assert.NoError(t, err)
		assert.Equal(t, 0.5, rank)
	})

	t.Run("Below Min", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(10.0))
		assert.NoError(t, d.Update(20.0))

		rank, err := d.Rank(5.0)
		assert.NoError(t, err)
		assert.Equal(t, 0.0, rank)
	})

	t.Run("Above Max", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(10.0))
		assert.NoError(t, d.Update(20.0))

		rank, err := d.Rank(25.0)
		assert.NoError(t, err)
		assert.Equal(t, 1.0, rank)
	})

	t.Run("Uniform Distribution", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		for i := 1; i <= 100; i++ {
			assert.NoError(t, d.Update(float64(i)))
		}

		rank, err := d.Rank(50.0)
		assert.NoError(t, err)
		assert.InDelta(t, 0.5, rank, 0.1)
	})

	t.Run("Repeated Values", func(t *testing.T) {
		d, _ := NewDouble(100)
		for i := 0; i < 4; i++ {
			assert.NoError(t, d.Update(1.0))
		}

		rank, err := d.Rank(0.99)
		assert.NoError(t, err)
		assert.Equal(t, 0.0, rank)

		rank, err = d.Rank(1.0)
		assert.NoError(t, err)
		assert.Equal(t, 0.5, rank)

		rank, err = d.Rank(1.01)
		assert.NoError(t, err)
		assert.Equal(t, 1.0, rank)
	})

	t.Run("Rank Is Monotonic", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		for i := 0; i < 1000; i++ {
			assert.NoError(t, d.Update(float64(i)))
		}

		prev := -1.0
		for v := 0.0; v < 1000; v += 17 {
			r, err := d.Rank(v)
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, r, prev)
			prev = r
		}
	})
}

func TestQuantile(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		_, err := d.Quantile(0.5)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("Invalid Rank Below Zero", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(1.0))
		_, err := d.Quantile(-0.1)
		assert.ErrorIs(t, err, ErrInvalidRank)
	})

	t.Run("Invalid Rank Above One", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(1.0))
		_, err := d.Quantile(1.1)
		assert.ErrorIs(t, err, ErrInvalidRank)
	})

	t.Run("Single Value", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		assert.NoError(t, d.Update(42.0))

		for _, rank := range []float64{0.0, 0.5, 1.0} {
			q, err := d.Quantile(rank)
			assert.NoError(t, err)
			assert.Equal(t, 42.0, q)
		}
	})

	t.Run("Rank Zero And One Return Min And Max", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		for i := 1; i <= 100; i++ {
			assert.NoError(t, d.Update(float64(i)))
		}

		q, err := d.Quantile(0.0)
		assert.NoError(t, err)
		assert.Equal(t, 1.0, q)

		q, err = d.Quantile(1.0)
		assert.NoError(t, err)
		assert.Equal(t, 100.0, q)
	})

	t.Run("Median Of Uniform Distribution", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		for i := 1; i <= 100; i++ {
			assert.NoError(t, d.Update(float64(i)))
		}

		q, err := d.Quantile(0.5)
		assert.NoError(t, err)
		assert.InDelta(t, 50.0, q, 5.0)
	})

	t.Run("Quantile Is Monotonic", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		for i := 0; i < 1000; i++ {
			assert.NoError(t, d.Update(float64(i)))
		}

		prev := math.Inf(-1)
		for r := 0.0; r <= 1.0; r += 0.05 {
			q, err := d.Quantile(r)
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, q, prev)
			prev = q
		}
	})

	t.Run("Rank And Quantile Roundtrip Approximately", func(t *testing.T) {
		d, _ := NewDouble(DefaultK)
		for i := 0; i < 10000; i++ {
			assert.NoError(t, d.Update(float64(i)))
		}

		q, err := d.Quantile(0.5)
		assert.NoError(t, err)
		rank, err := d.Rank(q)
		assert.NoError(t, err)
		assert.InDelta(t, 0.5, rank, 0.02)
	})
}
