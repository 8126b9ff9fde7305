package filter

import (
	"iter"
	"net/netip"

	"github.com/gaissmai/bart"
)

// Mode is the rule match direction: more-specific or less-specific.
type Mode uint8

const (
	ModeMoreSpecific Mode = iota
	ModeLessSpecific
)

func (m Mode) String() string {
	if m == ModeLessSpecific {
		return "ls"
	}
	return "ms"
}

// ruleModes tracks which modes are set for one compiled network. A network
// can carry both an ms and an ls rule at once; that is not a duplicate.
type ruleModes struct {
	ms bool
	ls bool
}

// Filter is the compiled rule set: an indexed IPv4/IPv6 prefix trie plus an
// AS set and a host-address set. It is built once by Load and, from then
// on, read concurrently by every filter-worker goroutine without further
// synchronization -- the same "load once, share by read-only reference"
// contract stages/rpki uses for its ROA cache, minus the atomic.Pointer
// swap, since this filter is never hot-reloaded.
type Filter struct {
	table   *bart.Table[ruleModes]
	asSet   map[uint32]struct{}
	hostSet map[netip.Addr]struct{}
}

// New returns an initialized, empty Filter. Equivalent to spec's init().
func New() *Filter {
	f := &Filter{}
	f.reset()
	return f
}

// reset clears prior state, making Load idempotent.
func (f *Filter) reset() {
	f.table = new(bart.Table[ruleModes])
	f.asSet = make(map[uint32]struct{})
	f.hostSet = make(map[netip.Addr]struct{})
}

// Matches reports whether r satisfies any of the filter's match axes:
// terminal-AS membership, IPv4 prefix rules, host-address containment, or
// IPv6 prefix rules. See matchPrefixes and matchHosts for the per-axis
// logic.
func (f *Filter) Matches(r Record) bool {
	if r.HasAS {
		if _, ok := f.asSet[r.TerminalAS]; ok {
			return true
		}
	}
	if f.matchPrefixes(r.V4Prefixes) {
		return true
	}
	if f.matchHosts(r.V4Prefixes) {
		return true
	}
	return f.matchPrefixes(r.V6Prefixes)
}

// matchPrefixes implements the mode-aware rule match of spec.md §4.1 using
// the trie's Supernets/Subnets iterators in place of the four-level octet
// table: Supernets(p) yields every compiled network that contains or
// equals p (MORE_SPECIFIC candidates), Subnets(p) yields every compiled
// network contained in or equal to p (LESS_SPECIFIC candidates). Both
// iterators already do the "longest common prefix" descent the spec
// describes; only the per-candidate mode flag needs checking here.
func (f *Filter) matchPrefixes(prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		for _, v := range f.table.Supernets(p) {
			if v.ms {
				return true
			}
		}
		for _, v := range f.table.Subnets(p) {
			if v.ls {
				return true
			}
		}
	}
	return false
}

// matchHosts implements axis 3: a bare host address falls inside one of
// the update's announced/withdrawn v4 prefixes.
func (f *Filter) matchHosts(v4Prefixes []netip.Prefix) bool {
	if len(f.hostSet) == 0 {
		return false
	}
	for _, p := range v4Prefixes {
		for h := range f.hostSet {
			if p.Contains(h) {
				return true
			}
		}
	}
	return false
}

// CountV4 returns the number of compiled IPv4 prefix rules (each ms/ls flag
// on a network counts as one rule, matching v4_rules' cardinality).
func (f *Filter) CountV4() int { return countModes(f.table.All4()) }

// CountV6 returns the number of compiled IPv6 prefix rules.
func (f *Filter) CountV6() int { return countModes(f.table.All6()) }

// CountAS returns the size of the AS set.
func (f *Filter) CountAS() int { return len(f.asSet) }

// CountHost returns the size of the host-address set.
func (f *Filter) CountHost() int { return len(f.hostSet) }

// TotalRules is the sum checked by spec.md §8 property 8.
func (f *Filter) TotalRules() int {
	return f.CountV4() + f.CountV6() + f.CountAS() + f.CountHost()
}

func countModes(seq iter.Seq2[netip.Prefix, ruleModes]) int {
	n := 0
	for _, m := range seq {
		if m.ms {
			n++
		}
		if m.ls {
			n++
		}
	}
	return n
}
