// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/referral-funnel/models"
)

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) UpdateContact(ctx context.Context, in ContactInput) (ContactResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(ContactResult), args.Error(1)
}

func TestSideAttributorRunsInBackground(t *testing.T) {
	m := &mockUpdater{}
	in := ContactInput{Code: "AB12CD", Email: "a@b.com"}
	m.On("UpdateContact", mock.Anything, in).Return(ContactResult{ReferralID: "r1"}, nil).Once()

	side := NewSideAttributor(m, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	side.Attribute(ctx, in)
	// the request that started it may finish first
	cancel()
	side.Wait()

	m.AssertExpectations(t)
}

func TestSideAttributorSwallowsFailure(t *testing.T) {
	m := &mockUpdater{}
	m.On("UpdateContact", mock.Anything, mock.Anything).Return(ContactResult{}, errors.New("db down"))

	side := NewSideAttributor(m, time.Second)
	assert.NotPanics(t, func() {
		side.Attribute(context.Background(), ContactInput{Code: "AB12CD", Email: "a@b.com"})
		side.Wait()
	})
	m.AssertNumberOfCalls(t, "UpdateContact", 1)
}

func TestSideAttributorSkipsWithoutCode(t *testing.T) {
	m := &mockUpdater{}
	side := NewSideAttributor(m, time.Second)

	side.Attribute(context.Background(), ContactInput{Email: "a@b.com"})
	side.Wait()
	m.AssertNotCalled(t, "UpdateContact", mock.Anything, mock.Anything)
}

type slowUpdater struct {
	deadlineHit atomic.Bool
}

func (s *slowUpdater) UpdateContact(ctx context.Context, in ContactInput) (ContactResult, error) {
	<-ctx.Done()
	s.deadlineHit.Store(true)
	return ContactResult{}, ctx.Err()
}

func TestSideAttributorTimeout(t *testing.T) {
	slow := &slowUpdater{}
	side := NewSideAttributor(slow, 20*time.Millisecond)

	side.Attribute(context.Background(), ContactInput{Code: "AB12CD", Email: "a@b.com"})
	side.Wait()
	assert.True(t, slow.deadlineHit.Load())
}

func TestSideAttributorWithTracker(t *testing.T) {
	_, tr, _ := setupTracker(t)
	side := NewSideAttributor(tr, 0)

	side.Attribute(context.Background(), ContactInput{Code: "AB12CD", Email: "walk-in@example.com", Name: "Walk In"})
	side.Wait()

	refs, err := tr.ListByReferrer(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, models.ReferralPending, refs[0].Status)
	assert.Equal(t, "walk-in@example.com", *refs[0].ReferredEmail)
}
