// Package xmlrec adapts one raw BGP-monitor XML document into the small
// record package filter matches against. Nothing in the retrieved corpus
// speaks this exact ASCII_MSG schema, or any generic XML path-query
// library at all, so this is a direct encoding/xml unmarshal into
// schema-shaped structs -- see DESIGN.md.
package xmlrec

import "encoding/xml"

type bgpMessage struct {
	XMLName xml.Name `xml:"BGP_MESSAGE"`
	ASCII   asciiMsg `xml:"ASCII_MSG"`
}

type asciiMsg struct {
	Update update `xml:"UPDATE"`
}

type update struct {
	Withdrawn *withdrawnBlock `xml:"WITHDRAWN"`
	NLRI      *nlriBlock      `xml:"NLRI"`
	MPReach   *mpReach        `xml:"MP_REACH_NLRI"`
	MPUnreach *mpUnreach      `xml:"MP_UNREACH_NLRI"`
	ASPath    *asPath         `xml:"AS_PATH"`
}

// withdrawnBlock mirrors WITHDRAWN/PREFIX/*/ADDRESS: each PREFIX wraps its
// address in one more, arbitrarily-named element, unlike NLRI's flatter
// PREFIX/ADDRESS shape.
type withdrawnBlock struct {
	Prefix []withdrawnPrefix `xml:"PREFIX"`
}

type withdrawnPrefix struct {
	Any []addressHolder `xml:",any"`
}

// nlriBlock mirrors the flatter .../NLRI/PREFIX/ADDRESS and
// .../WITHDRAWN/PREFIX/ADDRESS shapes used inside the MP attributes.
type nlriBlock struct {
	Prefix []addressHolder `xml:"PREFIX"`
}

type addressHolder struct {
	Address string `xml:"ADDRESS"`
}

type mpReach struct {
	NLRI *nlriBlock `xml:"NLRI"`
}

type mpUnreach struct {
	Withdrawn *nlriBlock `xml:"WITHDRAWN"`
}

type asPath struct {
	Segments []asSeg `xml:"AS_SEG"`
}

type asSeg struct {
	AS []string `xml:"AS"`
}
