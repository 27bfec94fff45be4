// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "code.hybscloud.com/msq/epoch"

// reclaimer is the reclamation context shared by Queue and Stack.
//
// Under manual reclamation domain is nil and every operation runs with the
// unprotected guard, so retiring a node releases it on the spot.
type reclaimer struct {
	domain  *epoch.Domain
	private bool // domain is owned by this structure
}

func newReclaimer(o Options) reclaimer {
	switch {
	case o.reclamation == Manual:
		return reclaimer{}
	case o.domain != nil:
		return reclaimer{domain: o.domain}
	default:
		return reclaimer{domain: epoch.New(), private: true}
	}
}

func (r *reclaimer) pin() epoch.Guard {
	if r.domain == nil {
		return epoch.Unprotected()
	}
	return r.domain.Pin()
}

// settle runs what a private domain still holds after teardown.
func (r *reclaimer) settle() {
	if r.private {
		r.domain.Barrier()
	}
}

// Reclamation reports the strategy in use.
func (r *reclaimer) Reclamation() Reclamation {
	if r.domain == nil {
		return Manual
	}
	return Epoch
}

// Domain returns the epoch domain, or nil under manual reclamation.
func (r *reclaimer) Domain() *epoch.Domain {
	return r.domain
}
