// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

// ArenaLive returns the number of allocated, unreleased nodes.
func (q *Queue[T]) ArenaLive() int { return q.arena.Live() }

// ArenaCap returns the number of node slots provisioned.
func (q *Queue[T]) ArenaCap() int { return q.arena.Cap() }

// ArenaLive returns the number of allocated, unreleased nodes.
func (s *Stack[T]) ArenaLive() int { return s.arena.Live() }

// ArenaCap returns the number of node slots provisioned.
func (s *Stack[T]) ArenaCap() int { return s.arena.Cap() }
