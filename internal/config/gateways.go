package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

// GatewayConfig describes one payment gateway in the defaults file.
type GatewayConfig struct {
	Code           string `yaml:"code"`
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	Active         bool   `yaml:"active"`
	SandboxMode    bool   `yaml:"sandbox_mode"`
	SupportsRefund bool   `yaml:"supports_refund"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

// GatewaysConfig is the platform gateway catalogue.
type GatewaysConfig struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// LoadGateways parses the gateway catalogue from path.
func LoadGateways(path string) (*GatewaysConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gateways config: %w", err)
	}
	var cfg GatewaysConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse gateways config: %w", err)
	}
	for _, g := range cfg.Gateways {
		if g.Code == "" {
			return nil, fmt.Errorf("gateway entry missing code")
		}
		if !payment.ValidGatewayType(payment.GatewayType(g.Type)) {
			return nil, fmt.Errorf("gateway %s: unknown type %q", g.Code, g.Type)
		}
	}
	return &cfg, nil
}

// LoadGatewaysOrDefault loads the catalogue or falls back to the built-in
// defaults when the file is missing.
func LoadGatewaysOrDefault(path string) *GatewaysConfig {
	cfg, err := LoadGateways(path)
	if err != nil {
		return DefaultGateways()
	}
	return cfg
}

// DefaultGateways returns the built-in gateway catalogue.
func DefaultGateways() *GatewaysConfig {
	return &GatewaysConfig{
		Gateways: []GatewayConfig{
			{Code: "cash", Name: "Cash", Type: string(payment.GatewayCash), Active: true},
			{Code: "mpesa", Name: "M-Pesa", Type: string(payment.GatewayMobileMoney), Active: true, SupportsRefund: true},
			{Code: "card", Name: "Card", Type: string(payment.GatewayCard), Active: false, SupportsRefund: true},
			{Code: "bank", Name: "Bank Transfer", Type: string(payment.GatewayBank), Active: false},
		},
	}
}

// SeedGateways creates any catalogue gateways missing from the store. Existing
// gateways are left untouched.
func SeedGateways(ctx context.Context, store storage.PaymentStore, cfg *GatewaysConfig) error {
	if cfg == nil {
		return nil
	}
	for _, g := range cfg.Gateways {
		if _, err := store.GetGatewayByCode(ctx, g.Code); err == nil {
			continue
		}
		if _, err := store.CreateGateway(ctx, payment.Gateway{
			Code:           g.Code,
			Name:           g.Name,
			Type:           payment.GatewayType(g.Type),
			Active:         g.Active,
			SandboxMode:    g.SandboxMode,
			SupportsRefund: g.SupportsRefund,
			WebhookSecret:  g.WebhookSecret,
		}); err != nil {
			return fmt.Errorf("seed gateway %s: %w", g.Code, err)
		}
	}
	return nil
}
