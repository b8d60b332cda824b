package universe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "btscreener/internal/errors"
)

type stubWeights struct {
	weights []Weight
	err     error
	calls   int
}

func (s *stubWeights) SP500Weights() ([]Weight, error) {
	s.calls++
	return s.weights, s.err
}

func TestLoadSymbolListFaves(t *testing.T) {
	symbols, err := LoadSymbolList(context.Background(), []string{"faves"}, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, symbols, "aapl")
	assert.Contains(t, symbols, "amzn")
	assert.Len(t, symbols, len(favesComponents))
}

func TestLoadSymbolListEmpty(t *testing.T) {
	_, err := LoadSymbolList(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoSymbols)

	_, err = LoadSymbolList(context.Background(), nil, []string{"  ", ""}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoSymbols)
}

func TestLoadSymbolListUnknownGroup(t *testing.T) {
	stub := &stubWeights{}
	_, err := LoadSymbolList(context.Background(), []string{"faves", "nasdaq"}, nil, stub)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nasdaq", verr.Value)
	assert.Zero(t, stub.calls)
}

func TestLoadSymbolListUnionKeepsFirstSeenOrder(t *testing.T) {
	symbols, err := LoadSymbolList(context.Background(),
		[]string{"dji", "faves"}, []string{" MSFT ", "zzz", "msft"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"msft", "zzz", "v", "xom"}, symbols[:4])

	seen := map[string]bool{}
	for _, s := range symbols {
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
	// every member of both groups is present
	for _, s := range append(djiComponents, favesComponents...) {
		assert.True(t, seen[s], s)
	}
}

func TestLoadSymbolListSP(t *testing.T) {
	stub := &stubWeights{weights: []Weight{{Symbol: "AAPL"}, {Symbol: "BRK.B"}}}
	symbols, err := LoadSymbolList(context.Background(), []string{"SP"}, nil, stub)
	require.NoError(t, err)

	assert.Equal(t, []string{"aapl", "brk.b"}, symbols)
	assert.Equal(t, 1, stub.calls)
}

func TestLoadSymbolListSPFailure(t *testing.T) {
	boom := errors.New("page unreadable")
	_, err := LoadSymbolList(context.Background(), []string{"sp"}, nil, &stubWeights{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestMembersReturnsCopy(t *testing.T) {
	a, ok := Members(GroupFaves)
	require.True(t, ok)
	a[0] = "changed"

	b, _ := Members(GroupFaves)
	assert.Equal(t, "aapl", b[0])

	_, ok = Members(GroupSP)
	assert.False(t, ok)
}
