// Package vatsim holds the wire types for the vNAS controller data feed and
// the callsign parsing rules shared by the reconciler.
package vatsim

import "time"

// Snapshot is one JSON document from the upstream feed, uniquely identified
// by UpdatedAt.
type Snapshot struct {
	UpdatedAt   time.Time    `json:"updatedAt"`
	Controllers []Controller `json:"controllers"`
}

// Controller is a single controller record within a Snapshot. Only the
// fields the reconciler and session writer need are modeled; unknown JSON
// fields are ignored by encoding/json by default.
type Controller struct {
	PrimaryPositionID string     `json:"primaryPositionId"`
	IsActive          bool       `json:"isActive"`
	IsObserver        bool       `json:"isObserver"`
	LoginTime         time.Time  `json:"loginTime"`
	VatsimData        VatsimData `json:"vatsimData"`
}

// VatsimData carries the descriptive, non-identifying fields plus the
// authoritative CID and callsign.
type VatsimData struct {
	CID              string `json:"cid"`
	RealName         string `json:"realName"`
	Callsign         string `json:"callsign"`
	UserRating       string `json:"userRating"`
	RequestedRating  string `json:"requestedRating"`
}

// UpdatedAtOnly is used by the feed client to extract just the authoritative
// timestamp before the full snapshot is parsed, keeping the rest of the body
// as opaque bytes on the ingestor's critical path (§4.1, §9).
type UpdatedAtOnly struct {
	UpdatedAt time.Time `json:"updatedAt"`
}
