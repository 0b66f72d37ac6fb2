package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
)

// Pubsub fans settled transactions out to in-process consumers (webhook
// poster, rabbitmq publisher). Topics are transaction statuses.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan models.Transaction
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan models.Transaction)
	return ps
}

// Subscribe registers ch on a topic. The same channel may be registered on
// several topics; the subscriber keeps ownership of the channel and Pubsub
// never closes it.
func (ps *Pubsub) Subscribe(topic string, ch chan models.Transaction) (subId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan models.Transaction)
	}
	subId = uuid.NewString()
	ps.subs[topic][subId] = ch
	return subId
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	delete(ps.subs[topic], id)
}

// SubscribeSettledTransactions returns a channel that receives every
// transaction reaching a terminal status, in the shape the rabbitmq
// publisher expects.
func (svc *BillingService) SubscribeSettledTransactions() (chan models.Transaction, error) {
	settled := make(chan models.Transaction)
	for _, topic := range []string{
		common.TransactionStatusCompleted,
		common.TransactionStatusFailed,
		common.TransactionStatusCancelled,
	} {
		svc.TransactionPubSub.Subscribe(topic, settled)
	}
	return settled, nil
}

// EncodeSettledTransaction writes the rabbitmq message payload for one
// settled transaction.
func (svc *BillingService) EncodeSettledTransaction(ctx context.Context, w io.Writer, txn models.Transaction) error {
	return json.NewEncoder(w).Encode(txn)
}

func (ps *Pubsub) Publish(topic string, msg models.Transaction) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if ps.subs[topic] == nil {
		return
	}

	for _, ch := range ps.subs[topic] {
		ch <- msg
	}
}
