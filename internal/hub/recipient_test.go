package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChannelRecipient_Deliver(t *testing.T) {
	r := NewChannelRecipient("s1", 4)
	require.NoError(t, r.Deliver(Message{Text: "hello", Type: TypeMessage}))

	msg := <-r.Messages()
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, TypeMessage, msg.Type)
	assert.Equal(t, SessionID("s1"), r.Session())
}

func TestChannelRecipient_DeliverClosed(t *testing.T) {
	r := NewChannelRecipient("s1", 4)
	require.NoError(t, r.Close())
	assert.True(t, r.IsClosed())

	err := r.Deliver(Message{Text: "fail", Type: TypeMessage})
	assert.ErrorIs(t, err, ErrDeliveryUnreachable)
	assert.Contains(t, err.Error(), "closed")
}

func TestChannelRecipient_DeliverFull(t *testing.T) {
	r := NewChannelRecipient("s1", 1)
	require.NoError(t, r.Deliver(Message{Text: "first", Type: TypeMessage}))

	err := r.Deliver(Message{Text: "overflow", Type: TypeMessage})
	assert.ErrorIs(t, err, ErrDeliveryUnreachable)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestChannelRecipient_CloseIdempotent(t *testing.T) {
	r := NewChannelRecipient("s1", 4)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.True(t, r.IsClosed())

	_, ok := <-r.Messages()
	assert.False(t, ok)
}

func TestChannelRecipient_DefaultBuffer(t *testing.T) {
	r := NewChannelRecipient("s1", 0)
	assert.Equal(t, DefaultRecipientBuffer, cap(r.messages))
}

func TestChannelRecipient_ConcurrentDeliverAndClose(t *testing.T) {
	r := NewChannelRecipient("s1", 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Deliver(Message{Text: "x", Type: TypeMessage})
		}()
	}
	require.NoError(t, r.Close())
	wg.Wait()
	assert.True(t, r.IsClosed())
}

func TestHub_NewRecipientUsesConfiguredBuffer(t *testing.T) {
	h := New(zap.NewNop(), Options{RecipientBuffer: 3})
	r := h.NewRecipient("s1")
	assert.Equal(t, SessionID("s1"), r.Session())
	assert.Equal(t, 3, cap(r.messages))

	h = New(zap.NewNop(), Options{})
	assert.Equal(t, DefaultRecipientBuffer, cap(h.NewRecipient("s2").messages))
}
