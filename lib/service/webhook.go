package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db/models"
)

// StartWebhookRoutine forwards every settled transaction to the configured
// webhook url. Runs until the context is cancelled.
func (svc *BillingService) StartWebhookRoutine(ctx context.Context) {
	if svc.Config.WebhookUrl == "" {
		svc.Logger.Info("Webhook url not configured, skipping webhook routine")
		return
	}
	svc.Logger.Infof("Starting webhook routine with url %s", svc.Config.WebhookUrl)

	settled := make(chan models.Transaction)
	subIds := map[string]string{}
	for _, topic := range []string{
		common.TransactionStatusCompleted,
		common.TransactionStatusFailed,
		common.TransactionStatusCancelled,
	} {
		subIds[topic] = svc.TransactionPubSub.Subscribe(topic, settled)
	}
	defer func() {
		for topic, id := range subIds {
			svc.TransactionPubSub.Unsubscribe(id, topic)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case txn := <-settled:
			svc.postToWebhook(txn)
		}
	}
}

func (svc *BillingService) postToWebhook(txn models.Transaction) {
	payload := new(bytes.Buffer)
	err := json.NewEncoder(payload).Encode(txn)
	if err != nil {
		svc.Logger.Error(err)
		return
	}

	resp, err := http.Post(svc.Config.WebhookUrl, "application/json", payload)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			svc.Logger.Error(err)
		}
		svc.Logger.Errorf("Webhook status code was %d, body: %s", resp.StatusCode, msg)
	}
}
