package listing

import (
	"time"

	"github.com/google/uuid"
)

// SystemActor is recorded for transitions made without a human reviewer
const SystemActor = "system"

// TransitionRecord is one append-only entry in a product's lifecycle history
type TransitionRecord struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

func newTransitionRecord(productID uuid.UUID, from, to Status, actor, reason string, at time.Time) TransitionRecord {
	return TransitionRecord{
		ID:        uuid.New(),
		ProductID: productID,
		From:      from,
		To:        to,
		Actor:     actor,
		Reason:    reason,
		At:        at,
	}
}
