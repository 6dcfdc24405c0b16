package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	BaseDomainEvent
}

func TestNewSupplierAggregateRoot(t *testing.T) {
	supplierID := uuid.New()
	root := NewSupplierAggregateRoot(supplierID)

	assert.NotEqual(t, uuid.Nil, root.ID)
	assert.Equal(t, 1, root.Version)
	assert.Equal(t, root.CreatedAt, root.UpdatedAt)
	assert.True(t, root.OwnedBy(supplierID))
	assert.False(t, root.OwnedBy(uuid.New()))
	assert.Empty(t, root.GetDomainEvents())
}

func TestBaseAggregateRoot_EventsAndVersion(t *testing.T) {
	root := NewSupplierAggregateRoot(uuid.New())
	root.AddDomainEvent(&testEvent{})
	root.AddDomainEvent(&testEvent{})
	root.IncrementVersion()

	assert.Len(t, root.GetDomainEvents(), 2)
	assert.Equal(t, 2, root.Version)

	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}

func TestBaseEntity_Touch(t *testing.T) {
	e := BaseEntity{UpdatedAt: time.Now().Add(-time.Hour)}
	before := e.UpdatedAt
	e.Touch()
	assert.True(t, e.UpdatedAt.After(before))
}
