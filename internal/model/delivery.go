package model

import "time"

type Destination string

const (
	DestinationMarketing     Destination = "marketing"
	DestinationIdentityQueue Destination = "identity_queue"
)

func (d Destination) String() string { return string(d) }

func (d Destination) Valid() bool {
	return d == DestinationMarketing || d == DestinationIdentityQueue
}

// DeliveryRecord lists the destinations an event has already been delivered to.
type DeliveryRecord struct {
	EventID      string        `json:"event_id"`
	Destinations []Destination `json:"delivered_destinations"`
}

func (r DeliveryRecord) Has(d Destination) bool {
	for _, x := range r.Destinations {
		if x == d {
			return true
		}
	}
	return false
}

type AttemptStatus string

const (
	AttemptDelivered AttemptStatus = "delivered"
	AttemptFailed    AttemptStatus = "failed"
	AttemptSkipped   AttemptStatus = "skipped"
)

func (s AttemptStatus) String() string {
	return string(s)
}

func (s AttemptStatus) Valid() bool {
	return s == AttemptDelivered || s == AttemptFailed || s == AttemptSkipped
}

// DeliveryAttempt is the audit row written to ClickHouse for every
// (event, destination) decision.
type DeliveryAttempt struct {
	ID          string        `db:"id"          json:"id"`
	EventID     string        `db:"event_id"    json:"event_id"`
	EventType   string        `db:"event_type"  json:"event_type"`
	Destination string        `db:"destination" json:"destination"`
	Status      AttemptStatus `db:"status"      json:"status"`
	Error       string        `db:"error"       json:"error,omitempty"`
	CreatedAt   time.Time     `db:"created_at"  json:"created_at"`
}
