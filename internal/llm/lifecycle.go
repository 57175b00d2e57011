package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Lifecycle event kinds.
const (
	KindAuction      = "auction"
	KindBid          = "bid"
	KindVerification = "verification"
)

const maxLifecycleEvents = 50

// LifecycleEvent is one auction, bid or verification status message seen on
// the stream.
type LifecycleEvent struct {
	Kind    string         `json:"kind"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Bids counts bids seen during the provider auction.
type Bids struct {
	Placed   int `json:"placed"`
	Revealed int `json:"revealed"`
}

// Auction summarizes the provider auction.
type Auction struct {
	Status  string `json:"status,omitempty"`
	Bids    *Bids  `json:"bids,omitempty"`
	Address string `json:"address,omitempty"`
}

// Lifecycle is the aggregated verification metadata attached to a report as
// "__ambient".
type Lifecycle struct {
	Verified             *bool            `json:"verified,omitempty"`
	VerifiedByValidators any              `json:"verified_by_validators,omitempty"`
	Model                string           `json:"model,omitempty"`
	MerkleRoot           string           `json:"merkle_root,omitempty"`
	RequestID            string           `json:"request_id,omitempty"`
	Auction              *Auction         `json:"auction,omitempty"`
	Bidder               string           `json:"bidder,omitempty"`
	Events               []LifecycleEvent `json:"events,omitempty"`
}

// LifecycleAggregator folds lifecycle events and chunk-level verification
// fields into a single Lifecycle. It is not safe for concurrent use.
type LifecycleAggregator struct {
	lc      Lifecycle
	touched bool
}

// NewLifecycleAggregator returns an empty aggregator.
func NewLifecycleAggregator() *LifecycleAggregator {
	return &LifecycleAggregator{}
}

// ClassifyEvent reports the lifecycle kind of an event, looking at the SSE
// event name first and then the payload's type, event and object fields.
// It returns empty strings for ordinary completion chunks.
func ClassifyEvent(eventName string, payload map[string]any) (kind, typ string) {
	candidates := []string{eventName}
	for _, key := range []string{"type", "event", "object"} {
		if s, ok := payload[key].(string); ok {
			candidates = append(candidates, s)
		}
	}
	for _, c := range candidates {
		norm := strings.ToLower(strings.TrimSpace(c))
		if norm == "" {
			continue
		}
		for _, k := range []string{KindVerification, KindAuction, KindBid} {
			if strings.HasPrefix(norm, k) {
				return k, norm
			}
		}
	}
	return "", ""
}

// subAction returns the part of typ after the kind prefix and separator,
// e.g. "started" for "auction.started".
func subAction(kind, typ string) string {
	rest := strings.TrimPrefix(typ, kind)
	return strings.TrimLeft(rest, "._-: ")
}

// Observe inspects one decoded event. When it is a lifecycle event the
// aggregate is updated and the event is returned with ok set.
func (a *LifecycleAggregator) Observe(eventName string, payload map[string]any) (LifecycleEvent, bool) {
	kind, typ := ClassifyEvent(eventName, payload)
	if kind == "" {
		return LifecycleEvent{}, false
	}
	a.touched = true
	sub := subAction(kind, typ)

	switch kind {
	case KindAuction:
		auction := a.auction()
		if sub != "" {
			auction.Status = sub
		} else if s := firstString(payload, "status", "state"); s != "" {
			auction.Status = s
		}
		if addr := firstString(payload, "auction_address", "address", "auction_url"); addr != "" {
			auction.Address = addr
		}
		a.applyCounts(payload)
	case KindBid:
		explicit := a.applyCounts(payload)
		if !explicit {
			bids := a.bids()
			switch {
			case strings.HasPrefix(sub, "placed"), sub == "place", sub == "":
				bids.Placed++
			case strings.HasPrefix(sub, "reveal"):
				bids.Revealed++
			}
		}
	case KindVerification:
		switch {
		case containsAny(sub, "fail", "reject", "invalid"):
			a.setVerified(false)
		case containsAny(sub, "complete", "success", "succeed", "verified", "pass"):
			a.setVerified(true)
		}
		a.applyVerification(payload)
	}

	if bidder := firstString(payload, "bidder", "winner", "winning_bidder"); bidder != "" {
		a.lc.Bidder = bidder
	}
	if id := firstString(payload, "request_id", "requestId"); id != "" && a.lc.RequestID == "" {
		a.lc.RequestID = id
	}

	ev := LifecycleEvent{Kind: kind, Type: typ, Payload: payload}
	if len(a.lc.Events) < maxLifecycleEvents {
		a.lc.Events = append(a.lc.Events, ev)
	}
	return ev, true
}

// ObserveChunk records the request id, model and any verification fields
// carried on an ordinary completion chunk or response body.
func (a *LifecycleAggregator) ObserveChunk(payload map[string]any) {
	if payload == nil {
		return
	}
	if id := firstString(payload, "request_id", "requestId", "id"); id != "" && a.lc.RequestID == "" {
		a.lc.RequestID = id
		a.touched = true
	}
	if model := firstString(payload, "model"); model != "" && a.lc.Model == "" {
		a.lc.Model = model
		a.touched = true
	}
	if a.applyVerification(payload) {
		a.touched = true
	}
}

// Result returns the aggregate, or nil when nothing was observed.
func (a *LifecycleAggregator) Result() *Lifecycle {
	if a == nil || !a.touched {
		return nil
	}
	out := a.lc
	out.Events = append([]LifecycleEvent(nil), a.lc.Events...)
	if a.lc.Auction != nil {
		auction := *a.lc.Auction
		if auction.Bids != nil {
			bids := *auction.Bids
			auction.Bids = &bids
		}
		out.Auction = &auction
	}
	return &out
}

func (a *LifecycleAggregator) auction() *Auction {
	if a.lc.Auction == nil {
		a.lc.Auction = &Auction{}
	}
	return a.lc.Auction
}

func (a *LifecycleAggregator) bids() *Bids {
	auction := a.auction()
	if auction.Bids == nil {
		auction.Bids = &Bids{}
	}
	return auction.Bids
}

func (a *LifecycleAggregator) setVerified(v bool) {
	a.lc.Verified = &v
}

// applyCounts copies explicit bid counts from the payload, flat or nested
// under "bids". It reports whether any count was present.
func (a *LifecycleAggregator) applyCounts(payload map[string]any) bool {
	src := payload
	if nested, ok := payload["bids"].(map[string]any); ok {
		src = nested
	}
	found := false
	if n, ok := firstInt(src, "bids_placed", "placed"); ok {
		a.bids().Placed = n
		found = true
	}
	if n, ok := firstInt(src, "bids_revealed", "revealed"); ok {
		a.bids().Revealed = n
		found = true
	}
	return found
}

func (a *LifecycleAggregator) applyVerification(payload map[string]any) bool {
	changed := false
	if v, ok := payload["verified"].(bool); ok {
		a.setVerified(v)
		changed = true
	}
	for _, key := range []string{"verified_by_validators", "validators"} {
		if v, ok := payload[key]; ok && v != nil {
			a.lc.VerifiedByValidators = v
			changed = true
			break
		}
	}
	if root := firstString(payload, "merkle_root", "merkleRoot"); root != "" {
		a.lc.MerkleRoot = root
		changed = true
	}
	return changed
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func firstInt(m map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n), true
			}
			if f, err := v.Float64(); err == nil {
				return int(f), true
			}
		case float64:
			return int(v), true
		case int:
			return v, true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// String renders a short human summary, used in debug logs.
func (l *Lifecycle) String() string {
	if l == nil {
		return "<none>"
	}
	verified := "unknown"
	if l.Verified != nil {
		verified = strconv.FormatBool(*l.Verified)
	}
	status := ""
	if l.Auction != nil {
		status = l.Auction.Status
	}
	return fmt.Sprintf("verified=%s auction=%q events=%d request_id=%s", verified, status, len(l.Events), l.RequestID)
}
