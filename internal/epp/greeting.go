package epp

import (
	"encoding/xml"
	"time"
)

type greetingFrame struct {
	XMLName  xml.Name     `xml:"epp"`
	Xmlns    string       `xml:"xmlns,attr"`
	Greeting greetingElem `xml:"greeting"`
}

type greetingElem struct {
	SvID    string      `xml:"svID"`
	SvDate  string      `xml:"svDate"`
	SvcMenu svcMenuElem `xml:"svcMenu"`
}

type svcMenuElem struct {
	Version string   `xml:"version"`
	Lang    string   `xml:"lang"`
	ObjURIs []string `xml:"objURI"`
}

// Greeting renders the server greeting sent on connect and in reply to
// <hello/>.
func Greeting(serverID string, now time.Time) ([]byte, error) {
	frame := greetingFrame{
		Xmlns: nsEPP,
		Greeting: greetingElem{
			SvID:   serverID,
			SvDate: now.UTC().Format(time.RFC3339),
			SvcMenu: svcMenuElem{
				Version: "1.0",
				Lang:    "en",
				ObjURIs: []string{nsDomain, nsContact, nsHost},
			},
		},
	}
	out, err := xml.Marshal(frame)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
