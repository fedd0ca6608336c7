// Package xmlcurl serves the engine's directory/dialplan callback. The
// engine issues form-encoded lookups and always expects a well-formed XML
// document back; every failure path degrades to the not-found stub.
package xmlcurl

import (
	"encoding/xml"
	"fmt"

	"github.com/voxgate/voxgate/internal/dialplan"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n"

type document struct {
	XMLName xml.Name `xml:"document"`
	Type    string   `xml:"type,attr"`
	Section section  `xml:"section"`
}

type section struct {
	Name    string     `xml:"name,attr"`
	Result  *result    `xml:"result,omitempty"`
	Domain  *domain    `xml:"domain,omitempty"`
	Context *xmContext `xml:"context,omitempty"`
}

type result struct {
	Status string `xml:"status,attr"`
}

type domain struct {
	Name   string  `xml:"name,attr"`
	Params []param `xml:"params>param"`
	Groups []group `xml:"groups>group"`
}

type group struct {
	Name  string `xml:"name,attr"`
	Users []user `xml:"users>user"`
}

type user struct {
	ID        string     `xml:"id,attr"`
	Params    []param    `xml:"params>param"`
	Variables []variable `xml:"variables>variable"`
}

type param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type variable struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmContext struct {
	Name       string      `xml:"name,attr"`
	Extensions []extension `xml:"extension"`
}

type extension struct {
	Name      string    `xml:"name,attr"`
	Condition condition `xml:"condition"`
}

type condition struct {
	Field      string      `xml:"field,attr"`
	Expression string      `xml:"expression,attr"`
	Actions    []xmlAction `xml:"action"`
}

type xmlAction struct {
	Application string `xml:"application,attr"`
	Data        string `xml:"data,attr,omitempty"`
}

// NotFoundXML is the fixed stub returned for any unresolvable lookup.
const NotFoundXML = xmlHeader + `<document type="freeswitch/xml">
  <section name="result">
    <result status="not found"/>
  </section>
</document>`

func render(doc document) (string, error) {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rendering xml document: %w", err)
	}
	return xmlHeader + string(out), nil
}

// toXMLAction maps a dialplan action to the engine application/data pair.
func toXMLAction(a dialplan.Action) xmlAction {
	switch a.Type {
	case dialplan.ActionBridge, dialplan.ActionTransfer:
		return xmlAction{Application: a.Type, Data: a.Target}
	case dialplan.ActionHangup:
		return xmlAction{Application: a.Type, Data: a.Cause}
	default:
		return xmlAction{Application: a.Type, Data: a.Data}
	}
}
