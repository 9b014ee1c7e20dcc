package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/berniyo/paypack-portal/internal/config"
	"github.com/berniyo/paypack-portal/internal/handler"
	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/internal/poller"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

func main() {
	cfg := config.Load()
	if err := cfg.RequireProvider(); err != nil {
		log.Fatalf("failed to configure paypack client: %v", err)
	}
	if cfg.CallbackURL == "" {
		log.Fatal("SUBSCRIPTION_CALLBACK_URL must be set")
	}

	logger := slogx.New(slogx.Config{
		Service: "paypack-lambda",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  "json",
	})

	client, err := paypack.NewClient(cfg.Paypack(),
		paypack.WithHTTPClient(cfg.HTTPClient()),
		paypack.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("failed to configure paypack client: %v", err)
	}

	callbackSender, err := handler.NewHTTPSCallbackSender(cfg.CallbackURL, cfg.CallbackSecret, nil)
	if err != nil {
		log.Fatalf("failed to configure callback sender: %v", err)
	}

	processor := handler.NewProcessor(
		payment.NewService(client, payment.WithServiceLogger(logger)),
		poller.New(poller.FetchFromPaypack(client), poller.WithThresholds(cfg.Poll), poller.WithLogger(logger)),
		handler.WithLogger(logger),
		handler.WithCallbackSender(callbackSender),
	)

	lambda.Start(processor.Handle)
}
