package linky

import (
	"context"
	"errors"
	"testing"

	"github.com/pevans/linky/archive"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker answers checks with fixed errors.
type fakeChecker struct {
	heartbeatErr error
	verifyErr    error
}

func (f *fakeChecker) Heartbeat(ctx context.Context) error { return f.heartbeatErr }
func (f *fakeChecker) Verify(ctx context.Context) error    { return f.verifyErr }

// TestNewVerifier_InvalidSchedule verifies bad expressions are rejected
func TestNewVerifier_InvalidSchedule(t *testing.T) {
	_, err := NewVerifier(&fakeChecker{}, "every tuesday", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid verify schedule")
}

// TestVerifier_Check verifies failures are returned and counted
func TestVerifier_Check(t *testing.T) {
	checker := &fakeChecker{}
	v, err := NewVerifier(checker, DefaultVerifySchedule, zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, v.Check(context.Background()))
	assert.Zero(t, v.Failures())

	checker.verifyErr = archive.ErrMetadataMismatch
	assert.ErrorIs(t, v.Check(context.Background()), archive.ErrMetadataMismatch)

	checker.heartbeatErr = errors.New("database is closed")
	assert.Error(t, v.Check(context.Background()))
	assert.Equal(t, int64(2), v.Failures())
}

// TestVerifier_RealArchive verifies a working archive passes
func TestVerifier_RealArchive(t *testing.T) {
	store := createTestArchive(t)
	require.True(t, store.Put(context.Background(), "https://example.com", "body", "example_pages").Saved)

	v, err := NewVerifier(store, "@every 1h", zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, v.Check(context.Background()))
}

// TestVerifier_StartStop verifies the schedule can be started and stopped
func TestVerifier_StartStop(t *testing.T) {
	v, err := NewVerifier(&fakeChecker{}, "@every 1h", zerolog.Nop())
	require.NoError(t, err)

	v.Start()
	v.Stop()
	assert.Zero(t, v.Failures())
}
