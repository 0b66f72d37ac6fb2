package rabbitmq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"

	"github.com/gaiypov/rabota360-billing/db/models"
)

// bufPool reuses encode buffers between published transactions instead of
// allocating a fresh one per message.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const contentTypeJSON = "application/json"

type (
	SubscribeToTransactionsFunc = func() (settled chan models.Transaction, err error)
	EncodeTransactionFunc       = func(ctx context.Context, w io.Writer, txn models.Transaction) error
)

type Client interface {
	StartPublishTransactions(context.Context, SubscribeToTransactionsFunc, EncodeTransactionFunc) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	conn           *amqp.Connection
	publishChannel *amqp.Channel

	logger *lecho.Logger

	transactionExchange string
}

type ClientOption = func(client *DefaultClient)

func WithTransactionExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.transactionExchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// Dial sets up a connection to rabbitmq with a channel ready to publish.
func Dial(uri string, options ...ClientOption) (Client, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}

	publishChannel, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	client := &DefaultClient{
		conn:           conn,
		publishChannel: publishChannel,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		transactionExchange: "billing_transaction",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.conn.Close() }

// StartPublishTransactions publishes every settled transaction to a topic
// exchange with routing key transaction.<type>.<status>, so consumers can
// bind to exactly the settlements they care about.
func (client *DefaultClient) StartPublishTransactions(ctx context.Context, subscribeFunc SubscribeToTransactionsFunc, payloadFunc EncodeTransactionFunc) error {
	err := client.publishChannel.ExchangeDeclare(
		client.transactionExchange,
		// topic exchanges route on the routing key
		"topic",
		// durable, survives server restarts
		true,
		false,
		// non-internal, accepts direct publishing
		false,
		// wait for the server to confirm the declare
		false,
		nil,
	)
	if err != nil {
		return err
	}

	client.logger.Info("Starting rabbitmq publisher")

	settled, err := subscribeFunc()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case txn := <-settled:
			err = client.publishTransaction(ctx, txn, payloadFunc)
			if err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) publishTransaction(ctx context.Context, txn models.Transaction, payloadFunc EncodeTransactionFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	err := payloadFunc(ctx, payload, txn)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("transaction.%s.%s", txn.Type, txn.Status)

	err = client.publishChannel.PublishWithContext(ctx,
		client.transactionExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		return err
	}

	client.logger.Debugf("Successfully published transaction %s to rabbitmq", txn.ID)

	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
