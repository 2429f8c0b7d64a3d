package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Peer service names used as keys of Internal.Services.
const (
	Catalog  = "catalog"
	Checkout = "checkout"
	Email    = "email"
)

// Internal is the service-to-service configuration shared by every service.
type Internal struct {
	ServiceID          string
	Secret             string
	AllowedServiceIDs  []string
	TimestampTolerance time.Duration
	Timeout            time.Duration
	MaxBodyBytes       int64
	Services           map[string]string
}

// LoadDotEnv loads a .env file when one is present. Variables already set
// in the process environment are left untouched.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}
}

// LoadInternal reads the internal service settings from the environment.
// defaultServiceID is used when INTERNAL_SERVICE_ID is unset.
func LoadInternal(defaultServiceID string) (Internal, error) {
	tolerance, err := strconv.Atoi(Getenv("INTERNAL_SERVICE_TIMESTAMP_TOLERANCE", "300"))
	if err != nil {
		return Internal{}, fmt.Errorf("invalid INTERNAL_SERVICE_TIMESTAMP_TOLERANCE: %w", err)
	}

	timeout, err := time.ParseDuration(Getenv("INTERNAL_SERVICE_TIMEOUT", "5s"))
	if err != nil {
		return Internal{}, fmt.Errorf("invalid INTERNAL_SERVICE_TIMEOUT: %w", err)
	}

	maxBody, err := strconv.ParseInt(Getenv("INTERNAL_MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil || maxBody <= 0 {
		return Internal{}, fmt.Errorf("invalid INTERNAL_MAX_BODY_BYTES: %q", os.Getenv("INTERNAL_MAX_BODY_BYTES"))
	}

	return Internal{
		ServiceID:          Getenv("INTERNAL_SERVICE_ID", defaultServiceID),
		Secret:             os.Getenv("INTERNAL_SERVICE_SECRET"),
		AllowedServiceIDs:  ParseServiceIDs(os.Getenv("INTERNAL_SERVICE_IDS")),
		TimestampTolerance: time.Duration(tolerance) * time.Second,
		Timeout:            timeout,
		MaxBodyBytes:       maxBody,
		Services: map[string]string{
			Catalog:  os.Getenv("CATALOG_SERVICE_URL"),
			Checkout: os.Getenv("CHECKOUT_SERVICE_URL"),
			Email:    os.Getenv("EMAIL_SERVICE_URL"),
		},
	}, nil
}

// ServiceURL returns the base URL configured for a peer.
func (i Internal) ServiceURL(name string) (string, error) {
	u := i.Services[name]
	if u == "" {
		return "", fmt.Errorf("%s service url is not configured", name)
	}
	return u, nil
}

// ParseServiceIDs splits a comma-separated allow-list, trimming entries and
// dropping empty ones.
func ParseServiceIDs(raw string) []string {
	return ParseList(raw)
}

// ParseList splits a comma-separated value, trimming entries and dropping
// empty ones.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Mail holds the outbound mail settings of the email service.
type Mail struct {
	Mailer   string
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// LoadMail reads MAIL_* settings. MAIL_MAILER defaults to "log".
func LoadMail() (Mail, error) {
	port, err := strconv.Atoi(Getenv("MAIL_PORT", "587"))
	if err != nil {
		return Mail{}, fmt.Errorf("invalid MAIL_PORT: %w", err)
	}
	return Mail{
		Mailer:   Getenv("MAIL_MAILER", "log"),
		Host:     Getenv("MAIL_HOST", "localhost"),
		Port:     port,
		Username: os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		From:     Getenv("MAIL_FROM_ADDRESS", "orders@example.com"),
	}, nil
}

// Kafka holds the job queue settings. No brokers means the in-process queue.
type Kafka struct {
	Brokers []string
	Topic   string
	Group   string
}

func LoadKafka(defaultTopic, defaultGroup string) Kafka {
	return Kafka{
		Brokers: ParseList(os.Getenv("KAFKA_BROKERS")),
		Topic:   Getenv("KAFKA_TOPIC", defaultTopic),
		Group:   Getenv("KAFKA_GROUP", defaultGroup),
	}
}

// Getenv returns the value of key, or def when it is unset or empty.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
