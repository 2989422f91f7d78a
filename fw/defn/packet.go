package defn

import (
	"time"

	enc "github.com/named-data/yanfd/std/encoding"
	"github.com/named-data/yanfd/std/types/optional"
)

// NackReason is the reason code carried by a Nack, ordered least to most
// severe: NoRoute < Duplicate < Congestion.
type NackReason int

const (
	NackReasonNone NackReason = iota
	NackReasonNoRoute
	NackReasonDuplicate
	NackReasonCongestion
)

// Returns the human-readable name of the Nack reason.
func (r NackReason) String() string {
	switch r {
	case NackReasonNoRoute:
		return "no-route"
	case NackReasonDuplicate:
		return "duplicate"
	case NackReasonCongestion:
		return "congestion"
	default:
		return "none"
	}
}

// Severity returns r's position in the least-to-most-severe lattice so
// callers can combine reasons with a plain max().
func (r NackReason) Severity() int {
	switch r {
	case NackReasonNoRoute:
		return 1
	case NackReasonDuplicate:
		return 2
	case NackReasonCongestion:
		return 3
	default:
		return 0
	}
}

// CombineNackReason combines two received Nack reasons per the lattice
// NoRoute < Duplicate < Congestion: the more severe reason overrides, so
// Congestion dominates everything.
func CombineNackReason(a, b NackReason) NackReason {
	if a == NackReasonNone {
		return b
	}
	if b == NackReasonNone {
		return a
	}
	if a.Severity() >= b.Severity() {
		return a
	}
	return b
}

// FwInterest is the subset of an Interest's fields the forwarding core
// reasons about; the wire codec that produces these is out of scope.
type FwInterest struct {
	NameV                  enc.Name
	CanBePrefixV           bool
	MustBeFreshV           bool
	ForwardingHintV        enc.Name
	NonceV                 optional.Optional[uint32]
	LifetimeV              optional.Optional[time.Duration]
	HopLimitV              optional.Optional[uint8]
	MinSuffixComponentsV   optional.Optional[int]
	MaxSuffixComponentsV   optional.Optional[int]
	PublisherPublicKeyLoc  []byte
	ExcludeV               []byte
	ChildSelectorV         optional.Optional[int]
	PitTokenV              []byte
}

// DefaultLifetime is used when an Interest carries no InterestLifetime.
const DefaultLifetime = 4 * time.Second

// Lifetime returns the Interest's lifetime, defaulting per NDN convention.
func (i *FwInterest) Lifetime() time.Duration {
	return i.LifetimeV.GetOr(DefaultLifetime)
}

// FwData is the subset of a Data packet's fields the forwarding core
// reasons about.
type FwData struct {
	NameV          enc.Name
	FreshnessV     optional.Optional[time.Duration]
	PitTokenV      []byte
	PrefixAnnounce []byte // opaque; see PrefixAnnouncementValidator in fw/fw
}

// FwNack is a negative acknowledgment: the Interest it answers, plus a reason.
type FwNack struct {
	Interest *FwInterest
	Reason   NackReason
}

