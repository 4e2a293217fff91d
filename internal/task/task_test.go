package task

import (
	"testing"
	"time"

	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
)

func TestTypeValid(t *testing.T) {
	require := testutil.Require(t)

	for _, taskType := range AllTypes() {
		require.True(taskType.Valid(), string(taskType))
	}
	require.False(Type("unknown").Valid())
	require.False(Type("").Valid())
}

func TestSourceValid(t *testing.T) {
	require := testutil.Require(t)

	for _, source := range []Source{SourceCron, SourceManual, SourceAPI, SourceCascade} {
		require.True(source.Valid())
	}
	require.False(Source("webhook").Valid())
}

func TestStatusTerminal(t *testing.T) {
	require := testutil.Require(t)

	require.True(StatusCompleted.Terminal())
	require.True(StatusFailed.Terminal())
	require.False(StatusWaiting.Terminal())
	require.False(StatusDelayed.Terminal())
	require.False(StatusActive.Terminal())
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		taskType Type
		subject  Subject
		bucket   time.Time
		expected string
	}{
		{
			name:     "round subject",
			taskType: TypeRoundResults,
			subject:  RoundSubject(20),
			expected: "round-results:round=20",
		},
		{
			name:     "no subject",
			taskType: TypeRoundFixtures,
			expected: "round-fixtures:-",
		},
		{
			name:     "entry subject inherits round",
			taskType: TypeEntryPicks,
			subject:  RoundSubject(15).WithEntry(77),
			expected: "entry-picks:round=15/entry=77",
		},
		{
			name:     "tournament subject",
			taskType: TypePointsRace,
			subject:  RoundSubject(15).WithTournament(3),
			expected: "points-race:round=15/tournament=3",
		},
		{
			name:     "time bucket",
			taskType: TypeLiveScores,
			subject:  RoundSubject(15),
			bucket:   testutil.MustTime("2024-01-13T15:04:00Z"),
			expected: "live-scores:round=15:202401131504",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := testutil.Require(t)
			require.Equal(test.expected, Key(test.taskType, test.subject, test.bucket))
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	require := testutil.Require(t)

	first := Key(TypeLiveScores, RoundSubject(15), testutil.MustTime("2024-01-13T15:00:00Z"))
	second := Key(TypeLiveScores, RoundSubject(15), testutil.MustTime("2024-01-13T15:00:00Z"))
	require.Equal(first, second)

	// Different buckets must produce different identities.
	third := Key(TypeLiveScores, RoundSubject(15), testutil.MustTime("2024-01-13T15:02:00Z"))
	require.NotEqual(first, third)
}
