// Package sos drafts emergency SMS messages.
package sos

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	prefix          = "🚨 SOS! I need help."
	unavailableText = prefix + " Location unavailable."
)

// Location is a GPS fix.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Link is a prepared SMS for one contact.
type Link struct {
	Phone string `json:"phone"`
	URI   string `json:"uri"`
}

// Alert is the drafted message and its per-contact links.
type Alert struct {
	Message string `json:"message"`
	Links   []Link `json:"links"`
}

// Message returns the SOS text for loc, which may be nil.
func Message(loc *Location) string {
	if loc == nil {
		return unavailableText
	}
	return fmt.Sprintf("%s My location: https://maps.google.com/?q=%s,%s",
		prefix,
		strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		strconv.FormatFloat(loc.Lon, 'f', -1, 64))
}

// Draft builds the alert. Blank contacts are skipped.
func Draft(loc *Location, contacts []string) Alert {
	msg := Message(loc)
	alert := Alert{Message: msg, Links: []Link{}}
	body := url.QueryEscape(msg)
	for _, c := range contacts {
		phone := strings.TrimSpace(c)
		if phone == "" {
			continue
		}
		alert.Links = append(alert.Links, Link{
			Phone: phone,
			URI:   "smsto:" + phone + "?body=" + body,
		})
	}
	return alert
}
