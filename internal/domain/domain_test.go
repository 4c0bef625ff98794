package domain

import (
	"fmt"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSplitFee(t *testing.T) {
	cases := []struct {
		amount, percent, fee, net int64
	}{
		{100, 5, 5, 95},
		{200, 5, 10, 190},
		{0, 5, 0, 0},
		{99, 5, 4, 95},
		{1000, 0, 0, 1000},
		{1000, 100, 1000, 0},
		{100_000_000_000_000_000, 7, 7_000_000_000_000_000, 93_000_000_000_000_000},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d@%d", tc.amount, tc.percent), func(t *testing.T) {
			fee, net := SplitFee(tc.amount, tc.percent)
			require.Equal(t, tc.fee, fee)
			require.Equal(t, tc.net, net)
		})
	}

	fee, net := SplitFee(math.MaxInt64, 100)
	require.Equal(t, int64(math.MaxInt64), fee)
	require.Zero(t, net)
}

func TestCategoryOf(t *testing.T) {
	wrapped := errors.Wrapf(ErrPipelineFull, "vacancy %s", "v1")
	require.Equal(t, CategoryBounds, CategoryOf(wrapped))
	require.Equal(t, "pipeline_full", CodeOf(wrapped))

	require.Equal(t, CategoryAuthorization, CategoryOf(ErrUnauthorized))
	require.Equal(t, CategoryResource, CategoryOf(errors.Wrap(ErrInsufficientPool, "settle")))
	require.Equal(t, CategoryStatePrecondition, CategoryOf(ErrWrongGate))
	require.Equal(t, CategoryInternal, CategoryOf(errors.New("disk on fire")))
	require.Equal(t, Category(""), CategoryOf(nil))
}

func TestParseMemberStatus(t *testing.T) {
	s, ok := ParseMemberStatus("in_search_of_work")
	require.True(t, ok)
	require.Equal(t, StatusInSearchOfWork, s)

	s, ok = ParseMemberStatus("2")
	require.True(t, ok)
	require.Equal(t, StatusClosed, s)

	_, ok = ParseMemberStatus("retired")
	require.False(t, ok)
	require.False(t, MemberStatus(3).Valid())
}
