// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package msq

// RaceEnabled is true when the race detector is active.
// Tests use it to skip concurrent runs whose element hand-off is ordered
// only by atomix operations, which the detector does not observe.
const RaceEnabled = true
