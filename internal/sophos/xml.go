package sophos

import (
	"encoding/xml"
	"strings"
)

const (
	statusEnable  = "Enable"
	statusDisable = "Disable"

	loginSuccessful = "Authentication Successful"
)

type apiRequest struct {
	XMLName xml.Name   `xml:"Request"`
	Login   loginBlock `xml:"Login"`
	Get     *getBlock  `xml:"Get,omitempty"`
	Set     *setBlock  `xml:"Set,omitempty"`
}

type loginBlock struct {
	Username string `xml:"Username"`
	Password string `xml:"Password"`
}

type getBlock struct {
	FirewallRule ruleFilter `xml:"FirewallRule"`
}

type ruleFilter struct {
	Key filterKey `xml:"Filter>key"`
}

type filterKey struct {
	Name     string `xml:"name,attr"`
	Criteria string `xml:"criteria,attr"`
	Value    string `xml:",chardata"`
}

type setBlock struct {
	Operation    string  `xml:"operation,attr"`
	FirewallRule xmlNode `xml:"FirewallRule"`
}

type apiResponse struct {
	XMLName       xml.Name     `xml:"Response"`
	Login         *loginResult `xml:"Login"`
	Status        *statusElem  `xml:"Status"`
	FirewallRules []xmlNode    `xml:"FirewallRule"`
}

type loginResult struct {
	Status string `xml:"status"`
}

type statusElem struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

// xmlNode is a generic element kept verbatim so a rule can be sent back
// with a single field changed.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func (n *xmlNode) child(name string) *xmlNode {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *xmlNode) childText(name string) string {
	if c := n.child(name); c != nil {
		return strings.TrimSpace(c.Text)
	}
	return ""
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// tidy drops indentation text from elements that have children.
func (n *xmlNode) tidy() {
	if len(n.Nodes) > 0 {
		n.Text = strings.TrimSpace(n.Text)
	}
	for i := range n.Nodes {
		n.Nodes[i].tidy()
	}
}

func statusFor(enabled bool) string {
	if enabled {
		return statusEnable
	}
	return statusDisable
}
