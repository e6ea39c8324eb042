// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/referral-funnel/testutil"
)

func TestSQLDirectoryLookup(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	testutil.CreateTestInvestor(t, conn, 42, "Ref Errer", "ref@example.com")
	dir := NewSQLDirectory(conn)

	inv, err := dir.Lookup(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), inv.ID)
	require.NotNil(t, inv.Name)
	assert.Equal(t, "Ref Errer", *inv.Name)
	require.NotNil(t, inv.Email)
	assert.Equal(t, "ref@example.com", *inv.Email)

	_, err = dir.Lookup(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}
