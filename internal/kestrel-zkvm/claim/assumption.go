package claim

import "fmt"

// Assumption is a deferred external claim the guest relied on: "some other
// program proved the claim with this digest". It stays unresolved until the
// composition engine substitutes a verified sub-receipt for it.
type Assumption struct {
	// ClaimDigest is the digest of the assumed claim.
	ClaimDigest Digest `json:"claim_digest"`

	// Resolved marks whether composition has discharged this assumption.
	Resolved bool `json:"resolved"`
}

// Assumptions is the ordered list of assumptions a guest execution made.
// New assumptions are prepended, matching the guest's view where the most
// recent assumption sits at the head of the list.
type Assumptions []Assumption

// Add prepends an unresolved assumption.
func (a *Assumptions) Add(claimDigest Digest) {
	*a = append(Assumptions{{ClaimDigest: claimDigest}}, *a...)
}

// Resolve marks the slot holding the given claim digest as resolved.
// Any unresolved slot may be discharged, not only the head; resolution by
// digest keeps the operation a pure lookup.
func (a Assumptions) Resolve(claimDigest Digest) error {
	for i := range a {
		if !a[i].Resolved && a[i].ClaimDigest == claimDigest {
			a[i].Resolved = true
			return nil
		}
	}
	return fmt.Errorf("no unresolved assumption with claim digest %s", claimDigest)
}

// Unresolved returns the digests of all assumptions still awaiting
// resolution, in list order.
func (a Assumptions) Unresolved() []Digest {
	var out []Digest
	for _, slot := range a {
		if !slot.Resolved {
			out = append(out, slot.ClaimDigest)
		}
	}
	return out
}

// AllResolved reports whether every assumption has been discharged.
func (a Assumptions) AllResolved() bool {
	return len(a.Unresolved()) == 0
}

// Clone returns a deep copy so resolution never mutates a shared claim.
func (a Assumptions) Clone() Assumptions {
	if a == nil {
		return nil
	}
	out := make(Assumptions, len(a))
	copy(out, a)
	return out
}

// Digest folds the unresolved assumptions into a tagged cons-list digest.
// Resolved slots no longer contribute: discharging an assumption changes the
// output digest, which is exactly what forces a receipt to be re-sealed.
func (a Assumptions) Digest() Digest {
	unresolved := a.Unresolved()
	root := ZeroDigest
	for i := len(unresolved) - 1; i >= 0; i-- {
		root = taggedListCons("kestrel.Assumptions", unresolved[i], root)
	}
	return root
}
