package service

import (
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"

	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/rabbitmq"
)

type BillingService struct {
	Config *Config
	DB     *bun.DB
	Logger *lecho.Logger
	// Gateways is the closed set of payment providers, built once at
	// startup from config. Lookups by name outside this map are an error,
	// never a fallback.
	Gateways          map[string]gateway.Adapter
	RabbitMQClient    rabbitmq.Client
	TransactionPubSub *Pubsub
}

func (svc *BillingService) GatewayFor(name string) (gateway.Adapter, error) {
	adapter, ok := svc.Gateways[name]
	if !ok {
		return nil, ErrUnknownGateway
	}
	return adapter, nil
}
