package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) ConfirmTransfer(ctx context.Context, source string) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

func TestConfirmer_BothLedgersMustVerify(t *testing.T) {
	ctx := context.Background()
	solana := new(MockLedgerClient)
	near := new(MockLedgerClient)
	confirmer := NewConfirmer(solana, near)

	solana.On("ConfirmTransfer", mock.Anything, "solAddr").Return(nil).Once()
	near.On("ConfirmTransfer", mock.Anything, "alice.near").Return(nil).Once()

	require.NoError(t, confirmer.ConfirmTransfer(ctx, "solAddr", "alice.near"))
	solana.AssertExpectations(t)
	near.AssertExpectations(t)
}

func TestConfirmer_SingleFamilyFailureKeepsItsText(t *testing.T) {
	ctx := context.Background()
	solana := new(MockLedgerClient)
	near := new(MockLedgerClient)
	confirmer := NewConfirmer(solana, near)

	nearErr := errors.New("no NEAR transfer from your address was found; send the transfer and try again")
	solana.On("ConfirmTransfer", mock.Anything, "solAddr").Return(nil)
	near.On("ConfirmTransfer", mock.Anything, "alice.near").Return(nearErr)

	err := confirmer.ConfirmTransfer(ctx, "solAddr", "alice.near")
	require.Error(t, err)
	assert.Equal(t, nearErr, err)
}
