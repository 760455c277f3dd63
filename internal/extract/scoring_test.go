package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreEmailRolePrefixes(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, ScoreEmail("info@acme.com"))
	require.Equal(t, 9, ScoreEmail("contact@acme.com"))
	require.Equal(t, 8, ScoreEmail("hello@acme.com"))
	require.Equal(t, 1, ScoreEmail("noreply@acme.com"))
	require.Equal(t, 1, ScoreEmail("no-reply@acme.com"))
	require.Equal(t, 0, ScoreEmail("john.doe@acme.com"))
}

func TestScoreEmailPenalties(t *testing.T) {
	t.Parallel()

	require.Equal(t, -5, ScoreEmail("john.doe@gmail.com"))
	require.Equal(t, 5, ScoreEmail("info@gmail.com"))
	require.Equal(t, -10, ScoreEmail("test@acme.com"))
	require.Equal(t, -15, ScoreEmail("test@gmail.com"))
}

func TestBestEmailPrefersRoleOverFreemail(t *testing.T) {
	t.Parallel()

	best, ok := BestEmail([]string{"info@acme.com", "john.doe@gmail.com"}, 0)
	require.True(t, ok)
	require.Equal(t, "info@acme.com", best)
}

func TestBestEmailRejectsAtOrBelowThreshold(t *testing.T) {
	t.Parallel()

	_, ok := BestEmail([]string{"test@acme.com"}, 0)
	require.False(t, ok, "junk-only candidate set yields no email")

	_, ok = BestEmail([]string{"john.doe@acme.com"}, 0)
	require.False(t, ok, "score exactly at threshold is rejected")

	best, ok := BestEmail([]string{"john.doe@acme.com"}, -1)
	require.True(t, ok, "lower threshold admits neutral addresses")
	require.Equal(t, "john.doe@acme.com", best)
}

func TestBestEmailDeterministicTieBreak(t *testing.T) {
	t.Parallel()

	// noreply and no-reply both score 1; first seen wins.
	best, ok := BestEmail([]string{"noreply@acme.com", "no-reply@acme.com"}, 0)
	require.True(t, ok)
	require.Equal(t, "noreply@acme.com", best)

	best, ok = BestEmail([]string{"no-reply@acme.com", "noreply@acme.com"}, 0)
	require.True(t, ok)
	require.Equal(t, "no-reply@acme.com", best)
}

func TestBestEmailEmptyInput(t *testing.T) {
	t.Parallel()

	_, ok := BestEmail(nil, 0)
	require.False(t, ok)
	_, ok = BestEmail([]string{"", "  "}, 0)
	require.False(t, ok)
}
