package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minutely/consult-server/internal/model"
)

func newSessionParams(customerID, providerID string) model.CreateSessionParams {
	return model.CreateSessionParams{
		Kind:               model.SessionKindVoiceCall,
		CustomerID:         customerID,
		ProviderID:         providerID,
		RatePerMinute:      decimal.NewFromInt(30),
		CommissionFraction: decimal.RequireFromString("0.30"),
	}
}

func TestSessionRepository_CreateOnePerPair(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	customer := seedAccount(t, db, model.RoleCustomer)
	provider := seedProvider(t, db, "30.00")

	var wg sync.WaitGroup
	results := make([]*model.Session, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := repo.Create(ctx, newSessionParams(customer, provider))
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	wg.Wait()

	created := 0
	for _, s := range results {
		if s != nil {
			created++
		}
	}
	assert.Equal(t, 1, created)

	open, err := repo.FindOpenByPair(ctx, customer, provider)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, model.SessionStatusPending, open.Status)
}

func TestSessionRepository_Transitions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	customer := seedAccount(t, db, model.RoleCustomer)
	provider := seedProvider(t, db, "30.00")

	s, err := repo.Create(ctx, newSessionParams(customer, provider))
	require.NoError(t, err)
	require.NotNil(t, s)

	now := time.Now().UTC().Truncate(time.Second)

	t.Run("complete refused while pending", func(t *testing.T) {
		out, err := repo.Complete(ctx, s.ID, model.CompleteSessionParams{
			EndTime:     now,
			TotalAmount: decimal.NewFromInt(1),
			EndedBy:     customer,
		})
		require.NoError(t, err)
		assert.Nil(t, out)

		stored, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, s.UpdatedAt.Equal(stored.UpdatedAt))
		assert.False(t, stored.TotalAmount.Valid)
	})

	t.Run("ring then join", func(t *testing.T) {
		out, err := repo.MarkRinging(ctx, s.ID, now)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, model.SessionStatusRinging, out.Status)

		out, err = repo.MarkActive(ctx, s.ID, now)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, model.SessionStatusActive, out.Status)
		require.NotNil(t, out.StartTime)
	})

	t.Run("notes append while open", func(t *testing.T) {
		out, err := repo.AppendNote(ctx, s.ID, "first")
		require.NoError(t, err)
		require.NotNil(t, out)
		out, err = repo.AppendNote(ctx, s.ID, "second")
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, []string(out.Notes))
	})

	t.Run("complete sets amounts once", func(t *testing.T) {
		params := model.CompleteSessionParams{
			EndTime:            now.Add(7 * time.Minute),
			DurationMinutes:    7,
			TotalAmount:        decimal.NewFromInt(210),
			ProviderEarnings:   decimal.NewFromInt(147),
			PlatformCommission: decimal.NewFromInt(63),
			EndedBy:            customer,
		}
		out, err := repo.Complete(ctx, s.ID, params)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.True(t, out.TotalAmount.Decimal.Equal(decimal.NewFromInt(210)))

		params.TotalAmount = decimal.NewFromInt(999)
		again, err := repo.Complete(ctx, s.ID, params)
		require.NoError(t, err)
		assert.Nil(t, again)

		stored, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.True(t, stored.TotalAmount.Decimal.Equal(decimal.NewFromInt(210)))
	})

	t.Run("terminal session accepts no notes", func(t *testing.T) {
		out, err := repo.AppendNote(ctx, s.ID, "late")
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("pair is free again", func(t *testing.T) {
		open, err := repo.FindOpenByPair(ctx, customer, provider)
		require.NoError(t, err)
		assert.Nil(t, open)
	})
}

func TestSessionRepository_ExpireStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	customer := seedAccount(t, db, model.RoleCustomer)
	provider := seedProvider(t, db, "30.00")

	s, err := repo.Create(ctx, newSessionParams(customer, provider))
	require.NoError(t, err)

	expired, err := repo.ExpireStale(ctx, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = repo.ExpireStale(ctx, time.Now().Add(time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, s.ID, expired[0].ID)
	assert.Equal(t, model.SessionStatusCancelled, expired[0].Status)
	require.NotNil(t, expired[0].CancelReason)
	assert.Equal(t, "expired", *expired[0].CancelReason)
}

func TestSessionRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db.DB)
	ctx := context.Background()

	customer := seedAccount(t, db, model.RoleCustomer)
	provider := seedProvider(t, db, "30.00")

	s, err := repo.Create(ctx, newSessionParams(customer, provider))
	require.NoError(t, err)

	all, err := repo.List(ctx, model.SessionListFilter{ActorID: provider, Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, s.ID, all[0].ID)

	active := model.SessionStatusActive
	none, err := repo.List(ctx, model.SessionListFilter{ActorID: customer, Status: &active, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}
