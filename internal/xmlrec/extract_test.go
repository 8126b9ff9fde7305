package xmlrec

import "testing"

func TestExtractNLRI(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE>
		<NLRI><PREFIX><ADDRESS>150.196.29.0/24</ADDRESS></PREFIX></NLRI>
	</UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rec.V4Prefixes) != 1 || rec.V4Prefixes[0].String() != "150.196.29.0/24" {
		t.Fatalf("unexpected v4 prefixes: %v", rec.V4Prefixes)
	}
	if len(rec.V6Prefixes) != 0 {
		t.Fatalf("unexpected v6 prefixes: %v", rec.V6Prefixes)
	}
	if rec.HasAS {
		t.Fatal("expected no terminal AS")
	}
}

func TestExtractWithdrawnIsAlwaysV4(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE>
		<WITHDRAWN><PREFIX><ENTRY><ADDRESS>205.94.224.0/20</ADDRESS></ENTRY></PREFIX></WITHDRAWN>
	</UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rec.V4Prefixes) != 1 || rec.V4Prefixes[0].String() != "205.94.224.0/20" {
		t.Fatalf("unexpected v4 prefixes: %v", rec.V4Prefixes)
	}
}

func TestExtractMPReachClassifiesByAddressForm(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE>
		<MP_REACH_NLRI><NLRI><PREFIX><ADDRESS>2a02:1378::/32</ADDRESS></PREFIX></NLRI></MP_REACH_NLRI>
	</UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rec.V6Prefixes) != 1 || rec.V6Prefixes[0].String() != "2a02:1378::/32" {
		t.Fatalf("unexpected v6 prefixes: %v", rec.V6Prefixes)
	}
	if len(rec.V4Prefixes) != 0 {
		t.Fatalf("unexpected v4 prefixes: %v", rec.V4Prefixes)
	}
}

func TestExtractMPUnreachClassifiesByAddressForm(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE>
		<MP_UNREACH_NLRI><WITHDRAWN><PREFIX><ADDRESS>10.0.0.0/8</ADDRESS></PREFIX></WITHDRAWN></MP_UNREACH_NLRI>
	</UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rec.V4Prefixes) != 1 || rec.V4Prefixes[0].String() != "10.0.0.0/8" {
		t.Fatalf("unexpected v4 prefixes: %v", rec.V4Prefixes)
	}
}

func TestExtractTerminalASIsLastOfLastSegment(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE>
		<AS_PATH>
			<AS_SEG><AS>100</AS><AS>200</AS></AS_SEG>
			<AS_SEG><AS>300</AS><AS>53175</AS></AS_SEG>
		</AS_PATH>
	</UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !rec.HasAS || rec.TerminalAS != 53175 {
		t.Fatalf("got HasAS=%v TerminalAS=%d, want 53175", rec.HasAS, rec.TerminalAS)
	}
}

func TestExtractDeduplicatesAndSorts(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE>
		<NLRI>
			<PREFIX><ADDRESS>10.0.2.0/24</ADDRESS></PREFIX>
			<PREFIX><ADDRESS>10.0.1.0/24</ADDRESS></PREFIX>
			<PREFIX><ADDRESS>10.0.1.0/24</ADDRESS></PREFIX>
		</NLRI>
	</UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rec.V4Prefixes) != 2 {
		t.Fatalf("expected dedup to 2 entries, got %d: %v", len(rec.V4Prefixes), rec.V4Prefixes)
	}
	if rec.V4Prefixes[0].String() != "10.0.1.0/24" || rec.V4Prefixes[1].String() != "10.0.2.0/24" {
		t.Fatalf("expected sorted order, got %v", rec.V4Prefixes)
	}
}

func TestExtractMissingPathsIsNotAnError(t *testing.T) {
	doc := `<BGP_MESSAGE><ASCII_MSG><UPDATE></UPDATE></ASCII_MSG></BGP_MESSAGE>`

	rec, err := Extract([]byte(doc))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rec.V4Prefixes) != 0 || len(rec.V6Prefixes) != 0 || rec.HasAS {
		t.Fatalf("expected empty record, got %+v", rec)
	}
}
