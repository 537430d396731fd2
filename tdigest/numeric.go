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

import "math"

func isNaN(v float64) bool { return math.IsNaN(v) }

func isInf(v float64) bool { return math.IsInf(v, 0) }

func positiveInfinity[F Float]() F {
	return F(math.Inf(1))
}

func negativeInfinity[F Float]() F {
	return F(math.Inf(-1))
}

// weightedAverage is defined as (x1*w1+x2*w2)/(w1+w2), but computed as
// x1+(x2-x1)*w2/(w1+w2): when x1 and x2 are close, the direct form cancels
// two large, nearly-equal products, while this form only ever adds a small
// correction to x1.
func weightedAverage(x1, w1, x2, w2 float64) float64 {
	return x1 + (x2-x1)*w2/(w1+w2)
}
