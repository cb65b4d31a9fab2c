package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaSinkPublishesEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event Event
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Name != EventTransferSent || event.AccountID != "acct-1" {
			return errors.New("unexpected event envelope")
		}
		if event.Payload["amount"] != "2.00" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	sink := NewKafkaSink(newSyncProducer(producer, nil), "custody.notifications")
	err := sink.Deliver(context.Background(), NewEvent(EventTransferSent, "acct-1", map[string]interface{}{"amount": "2.00"}))
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestKafkaSinkPropagatesFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaSink(newSyncProducer(producer, nil), "custody.notifications")
	err := sink.Deliver(context.Background(), NewEvent(EventWalletCreated, "acct-1", nil))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestSyncProducerHonorsCanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newSyncProducer(producer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.PublishJSON(ctx, "topic", "key", map[string]string{"a": "b"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, p.Close())
}

func TestNewSyncProducerRequiresBrokers(t *testing.T) {
	_, err := NewSyncProducer(nil, nil)
	assert.Error(t, err)
}
