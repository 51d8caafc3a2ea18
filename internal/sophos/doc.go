// Package sophos switches Sophos Firewall rules on and off through the
// firewall's XML API (https://host:port/webconsole/APIController).
//
// Every request carries its own login block. Reads filter firewall rules by
// exact name; updates resubmit the whole rule with only its Status changed so
// nothing else about the rule is touched.
package sophos
