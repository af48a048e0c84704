// Package asid models the address-space identifier used to disambiguate
// virtual addresses that live in different guest address spaces (on
// Intel PT: CR3 and VMCS pointers).
//
// An ASID is a small bag of optional keys. Two ASIDs match when, for
// every key that both sides specify as present, the values are equal; a
// side whose key is absent acts as a wildcard. This package canonicalizes
// user-supplied ASIDs once, at entry, so downstream code only ever
// compares canonical forms.
package asid

// User is the externally supplied form of an ASID: every field is
// optional, and a nil *uint64 means "don't care" / wildcard for that
// key.
type User struct {
	CR3  *uint64
	VMCS *uint64
}

// ASID is the canonical, comparable form produced by FromUser.
type ASID struct {
	cr3     uint64
	haveCR3 bool
	vmcs    uint64
	haveVMCS bool
}

// FromUser canonicalizes a user-supplied ASID. A nil User canonicalizes
// to the all-wildcard ASID, matching every other ASID.
func FromUser(u *User) (ASID, error) {
	var a ASID
	if u == nil {
		return a, nil
	}

	if u.CR3 != nil {
		a.cr3 = *u.CR3
		a.haveCR3 = true
	}
	if u.VMCS != nil {
		a.vmcs = *u.VMCS
		a.haveVMCS = true
	}

	return a, nil
}

// Matches reports whether a and other match per the wildcard rule
// above: 1 if they match, 0 if they don't.
func Matches(a, other ASID) (int, error) {
	if a.haveCR3 && other.haveCR3 && a.cr3 != other.cr3 {
		return 0, nil
	}
	if a.haveVMCS && other.haveVMCS && a.vmcs != other.vmcs {
		return 0, nil
	}
	return 1, nil
}

// Wildcard is the ASID that matches every other ASID.
var Wildcard = ASID{}
