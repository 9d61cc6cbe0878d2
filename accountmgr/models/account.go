package models

import (
	"encoding/json"
	"sort"
)

// RailSet holds the payment-rail identifiers currently active on an account.
// Membership is duplicate-free; Values returns a sorted snapshot so callers
// can iterate while removing members from the set itself.
type RailSet struct {
	ids map[string]struct{}
}

// NewRailSet builds a set from the given identifiers, dropping duplicates.
func NewRailSet(ids ...string) RailSet {
	s := RailSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *RailSet) Add(id string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

func (s *RailSet) Remove(id string) {
	delete(s.ids, id)
}

func (s *RailSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *RailSet) Len() int {
	return len(s.ids)
}

// Values returns the members as a new sorted slice. Mutating the set after
// the call does not affect the returned snapshot.
func (s *RailSet) Values() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s RailSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *RailSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewRailSet(ids...)
	return nil
}

// Account is the unified view of one customer across the backend services.
// UserID is immutable once the record exists; it keys the repository.
// MobileAccess is nil when the entitlement lookup could not be completed.
type Account struct {
	UserID            string  `json:"user_id"`
	ExternalAccountID string  `json:"external_account_id"`
	ActiveRails       RailSet `json:"active_payment_rails"`
	MobileAccess      *bool   `json:"mobile_access"`
	Cards             []*Card `json:"cards"`
}

// Linked reports whether the customer has a card-processor account.
// The empty ExternalAccountID is the "not linked" sentinel.
func (a *Account) Linked() bool {
	return a.ExternalAccountID != ""
}

// ActiveCards returns the cards that still grant access, in listing order.
func (a *Account) ActiveCards() []*Card {
	var active []*Card
	for _, c := range a.Cards {
		if c.Active() {
			active = append(active, c)
		}
	}
	return active
}

// Summary is the derived per-account service overview.
type Summary struct {
	UserID        string `json:"user_id"`
	MobileAccess  *bool  `json:"mobile_access"`
	HasActiveRail bool   `json:"has_active_rail"`
	HasActiveCard bool   `json:"has_active_card"`
}

// Summarize derives the service overview for the account.
func (a *Account) Summarize() Summary {
	s := Summary{
		UserID:        a.UserID,
		MobileAccess:  a.MobileAccess,
		HasActiveRail: a.ActiveRails.Len() > 0,
	}
	for _, c := range a.Cards {
		if c.Active() {
			s.HasActiveCard = true
			break
		}
	}
	return s
}
