package main

import (
	"github.com/veritasweb/payments/internal/audit"
	"github.com/veritasweb/payments/internal/checkout"
	"github.com/veritasweb/payments/internal/clock"
	"github.com/veritasweb/payments/internal/config"
	"github.com/veritasweb/payments/internal/credential"
	"github.com/veritasweb/payments/internal/idempotency"
	"github.com/veritasweb/payments/internal/observability"
	"github.com/veritasweb/payments/internal/ratelimit"
	"github.com/veritasweb/payments/internal/server"
	"github.com/veritasweb/payments/internal/subscriber"
	"github.com/veritasweb/payments/internal/webhook"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		clock.Module,
		observability.Module,
		credential.Module,
		ratelimit.Module,
		idempotency.Module,
		subscriber.Module,
		audit.Module,
		webhook.Module,
		checkout.Module,
		server.Module,
	).Run()
}
