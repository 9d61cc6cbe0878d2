package models

import "fmt"

// Status is the card-processor side lifecycle status of a card.
// The set is closed; values coming off the wire go through ParseStatus.
type Status string

const (
	StatusActivatedNoPin  Status = "ACTIVATED_NO_PIN"
	StatusActive          Status = "ACTIVE"
	StatusBroken          Status = "BROKEN"
	StatusCanceled        Status = "CANCELED"
	StatusCreated         Status = "CREATED"
	StatusDeactivated     Status = "DEACTIVATED"
	StatusDeleted         Status = "DELETED"
	StatusFrozen          Status = "FROZEN"
	StatusFrozenPermanent Status = "FROZEN_PERMANENT"
	StatusLost            Status = "LOST"
	StatusReordered       Status = "REORDERED"
	StatusShipped         Status = "SHIPPED"
	StatusStolen          Status = "STOLEN"
)

// ParseStatus converts a wire value into a Status, rejecting anything
// outside the closed set.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActivatedNoPin, StatusActive, StatusBroken, StatusCanceled,
		StatusCreated, StatusDeactivated, StatusDeleted, StatusFrozen,
		StatusFrozenPermanent, StatusLost, StatusReordered, StatusShipped,
		StatusStolen:
		return st, nil
	default:
		return "", fmt.Errorf("unknown card status %q", s)
	}
}

// Active reports whether a card in this status still grants access.
// Activity is derived, never stored.
func (s Status) Active() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusActivatedNoPin, StatusCreated, StatusShipped:
		return true
	case StatusBroken, StatusCanceled, StatusDeactivated, StatusDeleted,
		StatusFrozenPermanent, StatusLost, StatusReordered, StatusStolen:
		return false
	}
	return false
}

// CardType distinguishes plastic from app-only cards.
type CardType string

const (
	CardTypePhysical CardType = "PHYSICAL"
	CardTypeVirtual  CardType = "VIRTUAL"
)

// ParseCardType converts a wire value into a CardType.
func ParseCardType(s string) (CardType, error) {
	switch t := CardType(s); t {
	case CardTypePhysical, CardTypeVirtual:
		return t, nil
	default:
		return "", fmt.Errorf("unknown card type %q", s)
	}
}

// Card is one issued payment card as reported by the card processor.
type Card struct {
	ID     string   `json:"id"`
	Status Status   `json:"status"`
	Type   CardType `json:"type"`
}

// Active reports whether the card still grants access.
func (c *Card) Active() bool {
	return c.Status.Active()
}

// CancelTarget returns the terminal status a fraud cancellation drives this
// card to: virtual cards are deleted, physical cards are permanently frozen.
func (c *Card) CancelTarget() Status {
	if c.Type == CardTypeVirtual {
		return StatusCanceled
	}
	return StatusFrozenPermanent
}
