package main

import (
	"context"
	"testing"

	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_Idempotent(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	for range 2 {
		n, err := seed(ctx, db, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, len(demoUsers), n)
	}

	var profiles int64
	db.Model(&store.Profile{}).Count(&profiles)
	assert.Equal(t, int64(len(demoUsers)), profiles)

	sub, err := store.FindSubscription(ctx, db, demoUsers[1].id)
	require.NoError(t, err)
	assert.Equal(t, "premium", sub.Plan)
	assert.Equal(t, 60, sub.LunaMinutesBalance, "minutes are granted once")

	var p store.Profile
	require.NoError(t, db.First(&p, "id = ?", demoUsers[0].id).Error)
	assert.True(t, p.OnboardingCompleted)
	assert.Equal(t, "Lazio", p.RegRegion)
	assert.NotEmpty(t, p.SunSign)
}
