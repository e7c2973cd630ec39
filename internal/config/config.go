package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PGDSN             string
	MongoURI          string
	RedisAddr         string
	RabbitURL         string
	JWTPublicKey      string
	HoldTTL           time.Duration
	PeriodDuration    time.Duration
	ExtensionDayPrice float64
	InvoicePrefix     string
	ReferenceCountry  string
	ReferenceCurrency string
	OTLPEndpoint      string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 15 * time.Minute
	}
	periodDuration, _ := time.ParseDuration(os.Getenv("PERIOD_DURATION"))
	if periodDuration == 0 {
		periodDuration = 30 * 24 * time.Hour
	}
	dayPrice, _ := strconv.ParseFloat(os.Getenv("EXTENSION_DAY_PRICE"), 64)
	if dayPrice == 0 {
		dayPrice = 10.0
	}

	prefix := os.Getenv("INVOICE_PREFIX")
	if prefix == "" {
		prefix = "ELS"
	}
	refCountry := os.Getenv("REFERENCE_COUNTRY")
	if refCountry == "" {
		refCountry = "US"
	}
	refCurrency := os.Getenv("REFERENCE_CURRENCY")
	if refCurrency == "" {
		refCurrency = "USD"
	}

	return &Config{
		PGDSN:             os.Getenv("PG_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RabbitURL:         os.Getenv("RABBIT_URL"),
		JWTPublicKey:      os.Getenv("JWT_PUBLIC_KEY"),
		HoldTTL:           holdTTL,
		PeriodDuration:    periodDuration,
		ExtensionDayPrice: dayPrice,
		InvoicePrefix:     prefix,
		ReferenceCountry:  refCountry,
		ReferenceCurrency: refCurrency,
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
