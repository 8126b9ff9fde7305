package filter

import "net/netip"

// Record is the extracted, filter-ready view of one upstream update: the
// sorted/deduplicated prefix lists and terminal AS produced by package
// xmlrec. Kept here, not in xmlrec, since the match algorithm is what
// defines the contract the extractor must satisfy.
type Record struct {
	V4Prefixes []netip.Prefix
	V6Prefixes []netip.Prefix
	TerminalAS uint32
	HasAS      bool
}
