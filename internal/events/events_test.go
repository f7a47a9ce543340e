package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

func TestNew(t *testing.T) {
	e := New(RidePosted, "ride-1", "driver-1", map[string]interface{}{"seats": 2})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, RidePosted, e.Type)
	assert.Equal(t, "ride-1", e.Subject)
	assert.False(t, e.OccurredAt.IsZero())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), New(WalletDeposit, "u1", "u1", nil)))
	require.NoError(t, r.Publish(context.Background(), New(WalletWithdrawal, "u1", "u1", nil)))

	assert.Equal(t, []string{WalletDeposit, WalletWithdrawal}, r.Types())
	assert.Len(t, r.Events(), 2)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(logger.NewNop())
	assert.NoError(t, p.Publish(context.Background(), New(ChatMessage, "t1", "u1", nil)))
	assert.NoError(t, p.Close())
}
