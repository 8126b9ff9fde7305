package filter

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// Load reads the rule file at path and replaces f's compiled state. Load is
// idempotent: a prior Load's state is discarded before the new file is
// parsed, and a parse failure leaves f with a partially rebuilt state (the
// supervisor treats any error as fatal at startup and never runs on a
// half-loaded filter -- see spec.md §4.7).
//
// Grounded on stages/rpki/file.go's fileParseCSV: line-numbered,
// strings.Split-on-newline, strconv/netip per field, no generic parser
// library since nothing in the corpus speaks this three-token grammar.
func (f *Filter) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule file %s: %w", path, err)
	}

	f.reset()

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := f.parseLine(line); err != nil {
			return &ParseError{Line: i + 1, Err: err}
		}
	}
	return nil
}

func (f *Filter) parseLine(line string) error {
	fields := strings.Fields(line)
	kind := strings.ToLower(fields[0])
	args := fields[1:]

	switch kind {
	case "ipv4":
		return f.parseIPv4(args)
	case "ipv6":
		return f.parseIPv6(args)
	case "as":
		return f.parseAS(args)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, fields[0])
	}
}

func (f *Filter) parseIPv4(args []string) error {
	if len(args) == 0 {
		return ErrMissingValue
	}
	value := args[0]

	if !strings.Contains(value, "/") {
		if len(args) != 1 {
			return fmt.Errorf("%w: host %q takes no mode token", ErrBadHost, value)
		}
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is4() {
			return fmt.Errorf("%w: %q", ErrBadHost, value)
		}
		f.hostSet[addr] = struct{}{}
		return nil
	}

	pfx, err := netip.ParsePrefix(value)
	if err != nil || !pfx.Addr().Is4() {
		return fmt.Errorf("%w: %q", ErrBadPrefix, value)
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: prefix %q", ErrMissingMode, value)
	}
	mode, err := parseMode(args[1])
	if err != nil {
		return err
	}
	f.insertRule(pfx.Masked(), mode)
	return nil
}

func (f *Filter) parseIPv6(args []string) error {
	if len(args) == 0 {
		return ErrMissingValue
	}
	value := args[0]

	pfx, err := netip.ParsePrefix(value)
	if err != nil || !pfx.Addr().Is6() || pfx.Addr().Is4In6() {
		return fmt.Errorf("%w: %q", ErrBadPrefix, value)
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: prefix %q", ErrMissingMode, value)
	}
	mode, err := parseMode(args[1])
	if err != nil {
		return err
	}
	f.insertRule(pfx.Masked(), mode)
	return nil
}

func (f *Filter) parseAS(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one value", ErrBadAS)
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || n == 0 || n > 65535 {
		return fmt.Errorf("%w: %q", ErrBadAS, args[0])
	}
	f.asSet[uint32(n)] = struct{}{}
	return nil
}

func parseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "ms":
		return ModeMoreSpecific, nil
	case "ls":
		return ModeLessSpecific, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadMode, s)
	}
}

func (f *Filter) insertRule(pfx netip.Prefix, mode Mode) {
	f.table.Update(pfx, func(v ruleModes, _ bool) ruleModes {
		switch mode {
		case ModeMoreSpecific:
			v.ms = true
		case ModeLessSpecific:
			v.ls = true
		}
		return v
	})
}
