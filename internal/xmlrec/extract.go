package xmlrec

import (
	"encoding/xml"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/bgpmon/bgpmon-filter/internal/filter"
)

// Extract turns one raw <BGP_MESSAGE>...</BGP_MESSAGE> document into a
// filter.Record. A returned error means the document itself did not parse
// as XML; per spec.md §7 that is never fatal -- callers should log it and
// treat the message as carrying no extractable prefixes/AS, same as a
// well-formed document missing all the paths below.
func Extract(raw []byte) (filter.Record, error) {
	var doc bgpMessage
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return filter.Record{}, fmt.Errorf("unmarshal BGP_MESSAGE: %w", err)
	}

	u := doc.ASCII.Update
	var v4, v6 []netip.Prefix

	// WITHDRAWN is classified IPv4 unconditionally -- the spec-preserved
	// bug from spec.md §9: a v6 WITHDRAWN outside MP_UNREACH_NLRI would be
	// misclassified, same as the source.
	if u.Withdrawn != nil {
		for _, entry := range u.Withdrawn.Prefix {
			for _, addr := range entry.Any {
				if pfx, ok := parsePrefix(addr.Address); ok {
					v4 = append(v4, pfx)
				}
			}
		}
	}

	// Non-MP NLRI is always IPv4 by convention; the MP attributes carry
	// IPv6 (or multicast/other AFI) prefixes.
	if u.NLRI != nil {
		for _, addr := range u.NLRI.Prefix {
			if pfx, ok := parsePrefix(addr.Address); ok {
				v4 = append(v4, pfx)
			}
		}
	}

	if u.MPReach != nil && u.MPReach.NLRI != nil {
		for _, addr := range u.MPReach.NLRI.Prefix {
			classify(addr.Address, &v4, &v6)
		}
	}

	if u.MPUnreach != nil && u.MPUnreach.Withdrawn != nil {
		for _, addr := range u.MPUnreach.Withdrawn.Prefix {
			classify(addr.Address, &v4, &v6)
		}
	}

	rec := filter.Record{
		V4Prefixes: sortedUniquePrefixes(v4),
		V6Prefixes: sortedUniquePrefixes(v6),
	}
	if as, ok := terminalAS(u.ASPath); ok {
		rec.TerminalAS = as
		rec.HasAS = true
	}
	return rec, nil
}

func classify(address string, v4, v6 *[]netip.Prefix) {
	pfx, ok := parsePrefix(address)
	if !ok {
		return
	}
	if pfx.Addr().Is4() {
		*v4 = append(*v4, pfx)
	} else {
		*v6 = append(*v6, pfx)
	}
}

func parsePrefix(s string) (netip.Prefix, bool) {
	pfx, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, false
	}
	return pfx.Masked(), true
}

// sortedUniquePrefixes delivers the sorted-unique contract spec.md §4.2
// requires, using slices.Sort + slices.Compact rather than the source's
// sorted-input-only dedup trick (spec.md §9, Open Question 2).
func sortedUniquePrefixes(ps []netip.Prefix) []netip.Prefix {
	if len(ps) == 0 {
		return nil
	}
	slices.SortFunc(ps, comparePrefix)
	return slices.CompactFunc(ps, func(a, b netip.Prefix) bool { return a == b })
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}

// terminalAS takes the last AS element of the AS_PATH's last AS_SEG --
// preserved exactly per spec.md §9, Open Question 3.
func terminalAS(ap *asPath) (uint32, bool) {
	if ap == nil || len(ap.Segments) == 0 {
		return 0, false
	}
	last := ap.Segments[len(ap.Segments)-1]
	if len(last.AS) == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSpace(last.AS[len(last.AS)-1]), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
