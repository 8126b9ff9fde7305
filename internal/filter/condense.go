package filter

import (
	"iter"
	"net/netip"

	"github.com/gaissmai/bart"
)

// Condense aggregates adjacent ms sibling prefixes into their common
// parent, repeatedly, until no pair remains -- spec.md §4.1's "condense".
// Every update prefix that matched one of two ms siblings still matches
// their /m-1 parent. The parent additionally matches an update prefix
// equal to the parent itself, which neither half matched.
//
// ls rules are copied unchanged: merging two ls siblings would stop an
// update prefix equal to either half from matching, so after Condense two
// ls rules may still be the two halves of a common parent.
//
// The source's algorithm is an O(n²) outer loop over v4_rules/v6_rules
// doing in-place splicing (spec.md §9 flags this for re-architecture).
// This instead buckets each family's ms rules into a set and repeatedly
// merges sibling pairs via a map, which is the trie-canonicalization the
// spec's Design Notes recommend, just expressed over plain prefix sets
// since bart.Table has no native "merge adjacent leaves" operation.
func (f *Filter) Condense() {
	newTable := new(bart.Table[ruleModes])
	condenseFamily(f.table.All4(), newTable)
	condenseFamily(f.table.All6(), newTable)
	f.table = newTable
}

func condenseFamily(entries iter.Seq2[netip.Prefix, ruleModes], into *bart.Table[ruleModes]) {
	var msPrefixes, lsPrefixes []netip.Prefix
	for p, m := range entries {
		if m.ms {
			msPrefixes = append(msPrefixes, p)
		}
		if m.ls {
			lsPrefixes = append(lsPrefixes, p)
		}
	}

	for _, p := range mergeSiblings(msPrefixes) {
		into.Update(p, func(v ruleModes, _ bool) ruleModes { v.ms = true; return v })
	}
	for _, p := range lsPrefixes {
		into.Update(p, func(v ruleModes, _ bool) ruleModes { v.ls = true; return v })
	}
}

// mergeSiblings repeatedly replaces any two prefixes in prefixes that are
// the two halves of a common /bits-1 parent with that parent, until a full
// pass finds no mergeable pair.
func mergeSiblings(prefixes []netip.Prefix) []netip.Prefix {
	if len(prefixes) < 2 {
		return prefixes
	}

	set := make(map[netip.Prefix]bool, len(prefixes))
	for _, p := range prefixes {
		set[p] = true
	}

	for {
		merged := false
		for p := range set {
			if p.Bits() == 0 {
				continue
			}
			sibling := siblingOf(p)
			if !set[sibling] {
				continue
			}
			parent := netip.PrefixFrom(p.Addr(), p.Bits()-1).Masked()
			delete(set, p)
			delete(set, sibling)
			set[parent] = true
			merged = true
			break // set mutated underneath the range; restart the scan
		}
		if !merged {
			break
		}
	}

	out := make([]netip.Prefix, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// siblingOf returns the other half of p's parent /bits-1 prefix: p with
// its least significant network bit flipped.
func siblingOf(p netip.Prefix) netip.Prefix {
	bitIdx := p.Bits() - 1
	octets := p.Addr().AsSlice()
	octets[bitIdx/8] ^= 1 << (7 - bitIdx%8)
	addr, _ := netip.AddrFromSlice(octets)
	return netip.PrefixFrom(addr, p.Bits())
}
