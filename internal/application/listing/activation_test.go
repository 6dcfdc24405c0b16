package listing

import (
	"context"
	"errors"
	"testing"

	"github.com/catalogsync/backend/internal/domain/listing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestActivationDispatcher_Handle(t *testing.T) {
	repo := newFakeProductRepo()
	rec := seedActiveRecord(repo, uuid.New())
	event := listing.NewProductActivatedEvent(rec)

	t.Run("records successful automation and enqueues sync", func(t *testing.T) {
		tasks := &inlineTasks{}
		automation := new(MockOrderAutomation)
		automations := newMemAutomationRepo()
		syncer := new(MockSyncEnqueuer)

		automation.On("Automate", mock.Anything, mock.AnythingOfType("*listing.ProductRecord"), mock.Anything).
			Return(&listing.AutomationResult{ExternalOrderID: "SUP-991"}, nil).Once()
		syncer.On("EnqueueProduct", mock.Anything, rec.SupplierID, rec.ID).Return(nil).Once()

		d := NewActivationDispatcher(tasks, repo, automation, automations, syncer, zap.NewNop())
		require.NoError(t, d.Handle(context.Background(), event))

		assert.Equal(t, []string{TaskKindOrderAutomation, TaskKindSyncEnqueue}, tasks.kinds)
		assert.Equal(t, []error{nil, nil}, tasks.errors)

		runs, _ := automations.FindByProduct(context.Background(), rec.ID)
		require.Len(t, runs, 1)
		assert.Equal(t, listing.AutomationSucceeded, runs[0].Status)
		assert.Equal(t, "SUP-991", runs[0].ExternalOrderID)
		assert.Equal(t, 2, automations.saves)

		automation.AssertExpectations(t)
		syncer.AssertExpectations(t)
	})

	t.Run("failed automation is recorded and does not touch the product", func(t *testing.T) {
		tasks := &inlineTasks{}
		automation := new(MockOrderAutomation)
		automations := newMemAutomationRepo()
		syncer := new(MockSyncEnqueuer)

		automation.On("Automate", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("supplier network down"))
		syncer.On("EnqueueProduct", mock.Anything, rec.SupplierID, rec.ID).Return(nil)

		d := NewActivationDispatcher(tasks, repo, automation, automations, syncer, zap.NewNop())
		require.NoError(t, d.Handle(context.Background(), event))

		require.Len(t, tasks.errors, 2)
		assert.EqualError(t, tasks.errors[0], "supplier network down")
		assert.NoError(t, tasks.errors[1])

		runs, _ := automations.FindByProduct(context.Background(), rec.ID)
		require.Len(t, runs, 1)
		assert.Equal(t, listing.AutomationFailed, runs[0].Status)
		assert.Equal(t, "supplier network down", runs[0].ErrorMessage)

		stored, err := repo.FindByID(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, listing.StatusActive, stored.Status)
	})

	t.Run("ignores other events", func(t *testing.T) {
		tasks := &inlineTasks{}
		d := NewActivationDispatcher(tasks, repo, nil, nil, nil, zap.NewNop())
		require.NoError(t, d.Handle(context.Background(), listing.NewProductArchivedEvent(rec, "x")))
		assert.Empty(t, tasks.kinds)
	})
}
