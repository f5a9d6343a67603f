package producer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/kafka/producer"
)

func TestPublishSyncSendsPayload(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"ok":true}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p, err := producer.NewFromSyncProducer(sp, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFromSyncProducer returned error: %v", err)
	}
	defer p.Close()

	headers := map[string][]byte{"content-type": []byte("application/json")}
	if err := p.PublishSync("sms.status", []byte("req-1"), headers, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("PublishSync returned error: %v", err)
	}
	if !p.IsReady() {
		t.Fatalf("expected producer to be ready after a successful send")
	}
}

func TestPublishSyncFailureMarksNotReady(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p, err := producer.NewFromSyncProducer(sp, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFromSyncProducer returned error: %v", err)
	}
	defer p.Close()

	err = p.PublishSync("sms.status", nil, nil, []byte("x"))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if p.IsReady() {
		t.Fatalf("expected producer not ready after a failed send")
	}
	if err := p.Check(context.Background()); err == nil {
		t.Fatalf("expected readiness check to fail")
	}
}

func TestPublishSyncRequiresTopic(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p, err := producer.NewFromSyncProducer(sp, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFromSyncProducer returned error: %v", err)
	}
	defer p.Close()

	if err := p.PublishSync("", nil, nil, []byte("x")); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}

func TestNewRequiresBrokers(t *testing.T) {
	if _, err := producer.New(nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
