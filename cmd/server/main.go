package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/gaiypov/rabota360-billing/common"
	"github.com/gaiypov/rabota360-billing/db"
	"github.com/gaiypov/rabota360-billing/gateway"
	"github.com/gaiypov/rabota360-billing/lib/logging"
	"github.com/gaiypov/rabota360-billing/lib/service"
	"github.com/gaiypov/rabota360-billing/lib/tokens"
	"github.com/gaiypov/rabota360-billing/lib/transport"
	"github.com/gaiypov/rabota360-billing/rabbitmq"
)

// @title        rabota360 billing
// @version      1.0.0
// @description  Wallet and payment reconciliation service for the rabota360 job marketplace.

// @BasePath  /

// @securitydefinitions.oauth2.password  OAuth2Password
// @tokenUrl                             /auth
// @schemes                              https http
func main() {

	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := logging.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}

	// Migrate the DB
	startupCtx := context.Background()
	if err = db.Setup(startupCtx, dbConn); err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// The gateway registry is closed at startup; provider dispatch never
	// consults anything but this map.
	gateways := map[string]gateway.Adapter{}
	if c.TinkoffTerminalKey != "" {
		gateways[common.GatewayTinkoff] = gateway.NewTinkoff(gateway.TinkoffConfig{
			TerminalKey: c.TinkoffTerminalKey,
			SecretKey:   c.TinkoffSecretKey,
			APIURL:      c.TinkoffApiUrl,
			Timeout:     c.GatewayTimeout(),
		})
	}
	if c.AlfabankUsername != "" {
		gateways[common.GatewayAlfabank] = gateway.NewAlfabank(gateway.AlfabankConfig{
			Username:      c.AlfabankUsername,
			Password:      c.AlfabankPassword,
			WebhookSecret: c.AlfabankWebhookSecret,
			APIURL:        c.AlfabankApiUrl,
			Timeout:       c.GatewayTimeout(),
		})
	}
	if len(gateways) == 0 {
		logger.Fatalf("No payment gateway configured")
	}

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// No rabbitmq features will be available in this case.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		rabbitmqClient, err = rabbitmq.Dial(c.RabbitMQUri,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithTransactionExchange(c.RabbitMQTransactionExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}
		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	svc := &service.BillingService{
		Config:            c,
		DB:                dbConn,
		Logger:            logger,
		Gateways:          gateways,
		RabbitMQClient:    rabbitmqClient,
		TransactionPubSub: service.NewPubsub(),
	}

	//init echo server
	e := transport.InitEcho(c, logger)
	//if Datadog is configured, add datadog middleware
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("rabota360-billing")))
	}

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for payment initiation and invoice payment
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)

	secured := e.Group("", tokens.Middleware(c.JWTSecret), logMw)
	securedWithStrictRateLimit := e.Group("", tokens.Middleware(c.JWTSecret), strictRateLimitMiddleware, logMw)

	cacheClient, err := transport.CreateCacheClient()
	if err != nil {
		logger.Fatalf("Error creating cache client: %v", err)
	}

	transport.RegisterBillingEndpoints(svc, e, secured, securedWithStrictRateLimit, tokens.AdminTokenMiddleware(c.AdminToken), cacheClient)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	// Reconcile stale pending deposits in the background
	backgroundWg.Add(1)
	go func() {
		svc.StartPendingTransactionRoutine(backGroundCtx)
		svc.Logger.Info("Pending transaction routine done")
		backgroundWg.Done()
	}()

	//Start webhook poster
	if svc.Config.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			svc.StartWebhookRoutine(backGroundCtx)
			svc.Logger.Info("Webhook routine done")
			backgroundWg.Done()
		}()
	}

	//Start rabbit publisher
	if svc.RabbitMQClient != nil {
		backgroundWg.Add(1)
		go func() {
			err = svc.RabbitMQClient.StartPublishTransactions(backGroundCtx,
				svc.SubscribeSettledTransactions,
				svc.EncodeSettledTransaction,
			)
			if err != nil && err != context.Canceled {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}

			svc.Logger.Info("Rabbit transaction publisher done")
			backgroundWg.Done()
		}()
	}

	//Start Prometheus server if necessary
	if svc.Config.EnablePrometheus {
		go transport.StartPrometheusEcho(logger, svc, e)
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("Billing service exiting gracefully. Goodbye.")
}
