package services

import (
	"context"
	"testing"
	"time"

	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProfileReader struct {
	getProfileFn   func(ctx context.Context, userID uint) (*domain.UserProfile, error)
	getOrCreateFn  func(ctx context.Context, email, username string) (*domain.UserProfile, error)
	updateParamsFn func(ctx context.Context, userID uint, isf, icr float64) error
}

func (m mockProfileReader) GetProfile(ctx context.Context, userID uint) (*domain.UserProfile, error) {
	return m.getProfileFn(ctx, userID)
}

func (m mockProfileReader) GetOrCreateUser(ctx context.Context, email, username string) (*domain.UserProfile, error) {
	return m.getOrCreateFn(ctx, email, username)
}

func (m mockProfileReader) UpdateParams(ctx context.Context, userID uint, isf, icr float64) error {
	return m.updateParamsFn(ctx, userID, isf, icr)
}

type mockInsulinHistory struct {
	totalsFn func(ctx context.Context, userID uint, since time.Time) (map[string]float64, error)
}

func (m mockInsulinHistory) DailyInsulinTotals(ctx context.Context, userID uint, since time.Time) (map[string]float64, error) {
	return m.totalsFn(ctx, userID, since)
}

func fixedProfile(isf, icr float64) mockProfileReader {
	return mockProfileReader{getProfileFn: func(ctx context.Context, userID uint) (*domain.UserProfile, error) {
		return &domain.UserProfile{ID: userID, ISF: isf, ICR: icr}, nil
	}}
}

func fixedTotals(totals map[string]float64) mockInsulinHistory {
	return mockInsulinHistory{totalsFn: func(ctx context.Context, userID uint, since time.Time) (map[string]float64, error) {
		return totals, nil
	}}
}

func TestResolveExplicit(t *testing.T) {
	svc := NewProfileService(fixedProfile(45, 8), nil)

	params, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceExplicit, params.Source)
	assert.Equal(t, 45.0, params.ISF)
	assert.Equal(t, 8.0, params.ICR)
	assert.Zero(t, params.TDD)
}

func TestResolveCalculatedFromHistory(t *testing.T) {
	totals := map[string]float64{
		"2026-03-07": 40,
		"2026-03-08": 50,
		"2026-03-09": 60,
	}
	svc := NewProfileService(fixedProfile(0, 0), fixedTotals(totals))

	params, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCalculated, params.Source)
	assert.Equal(t, 50.0, params.TDD)
	assert.Equal(t, 34.0, params.ISF) // 1700 / 50
	assert.Equal(t, 10.0, params.ICR) // 500 / 50
}

func TestResolvePartialExplicitFallsThrough(t *testing.T) {
	// ISF set but ICR missing: the pair is incomplete, so TDD wins.
	totals := map[string]float64{
		"2026-03-07": 34, "2026-03-08": 34, "2026-03-09": 34,
	}
	svc := NewProfileService(fixedProfile(45, 0), fixedTotals(totals))

	params, err := svc.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCalculated, params.Source)
	assert.Equal(t, 50.0, params.ISF) // 1700 / 34
}

func TestResolveDefaults(t *testing.T) {
	tests := []struct {
		name   string
		totals map[string]float64
	}{
		{"no history", nil},
		{"too few days", map[string]float64{"2026-03-08": 40, "2026-03-09": 45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewProfileService(fixedProfile(0, 0), fixedTotals(tt.totals))
			params, err := svc.Resolve(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, domain.SourceDefault, params.Source)
			assert.Equal(t, 50.0, params.ISF)
			assert.Equal(t, 10.0, params.ICR)
		})
	}
}

func TestResolveClamping(t *testing.T) {
	t.Run("tiny TDD clamps high", func(t *testing.T) {
		totals := map[string]float64{"2026-03-07": 5, "2026-03-08": 5, "2026-03-09": 5}
		svc := NewProfileService(fixedProfile(0, 0), fixedTotals(totals))
		params, err := svc.Resolve(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 200.0, params.ISF) // 1700/5=340 clamped
		assert.Equal(t, 50.0, params.ICR)  // 500/5=100 clamped
	})

	t.Run("huge TDD clamps low", func(t *testing.T) {
		totals := map[string]float64{"2026-03-07": 300, "2026-03-08": 300, "2026-03-09": 300}
		svc := NewProfileService(fixedProfile(0, 0), fixedTotals(totals))
		params, err := svc.Resolve(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, 10.0, params.ISF) // 1700/300≈5.7 clamped
		assert.Equal(t, 3.0, params.ICR)  // 500/300≈1.7 clamped
	})
}

func TestResolveCalculatedIgnoresExplicit(t *testing.T) {
	totals := map[string]float64{"2026-03-09": 50}
	svc := NewProfileService(fixedProfile(45, 8), fixedTotals(totals))

	params, err := svc.ResolveCalculated(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCalculated, params.Source)
	assert.Equal(t, 34.0, params.ISF)
}

func TestResolveCalculatedNoHistory(t *testing.T) {
	svc := NewProfileService(fixedProfile(0, 0), fixedTotals(nil))

	_, err := svc.ResolveCalculated(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInsufficientData))
}

func TestRegister(t *testing.T) {
	t.Run("creates or returns user", func(t *testing.T) {
		svc := NewProfileService(mockProfileReader{
			getOrCreateFn: func(ctx context.Context, email, username string) (*domain.UserProfile, error) {
				assert.Equal(t, "ann@example.com", email)
				return &domain.UserProfile{ID: 5, Email: email, Username: username}, nil
			},
		}, nil)

		profile, err := svc.Register(context.Background(), "ann@example.com", "ann")
		require.NoError(t, err)
		assert.Equal(t, uint(5), profile.ID)
	})

	t.Run("email required", func(t *testing.T) {
		svc := NewProfileService(mockProfileReader{}, nil)
		_, err := svc.Register(context.Background(), "", "ann")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestSetParams(t *testing.T) {
	t.Run("stores explicit values", func(t *testing.T) {
		var gotISF, gotICR float64
		svc := NewProfileService(mockProfileReader{
			updateParamsFn: func(ctx context.Context, userID uint, isf, icr float64) error {
				gotISF, gotICR = isf, icr
				return nil
			},
		}, nil)

		require.NoError(t, svc.SetParams(context.Background(), 1, 45, 8))
		assert.Equal(t, 45.0, gotISF)
		assert.Equal(t, 8.0, gotICR)
	})

	t.Run("rejects non-positive values", func(t *testing.T) {
		svc := NewProfileService(mockProfileReader{}, nil)
		err := svc.SetParams(context.Background(), 1, 0, 8)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestResolveUserNotFound(t *testing.T) {
	svc := NewProfileService(mockProfileReader{getProfileFn: func(ctx context.Context, userID uint) (*domain.UserProfile, error) {
		return nil, apperrors.ErrUserNotFound
	}}, nil)

	_, err := svc.Resolve(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
