package bench

import (
	"fmt"
	"strings"

	"govai/internal/config"
	"govai/internal/llm"
)

// PriceSheet is one tier's published prices.
type PriceSheet struct {
	InputPer1M  float64 `json:"input_per_1m"`
	OutputPer1M float64 `json:"output_per_1m"`
}

// PricingInfo is the "pricing" block of a saved result.
type PricingInfo struct {
	Ambient struct {
		Tier     string     `json:"tier"`
		Standard PriceSheet `json:"standard"`
		Mini     PriceSheet `json:"mini"`
	} `json:"ambient"`
	Nous PriceSheet `json:"nous"`
}

// NewPricingInfo copies the configured price sheets.
func NewPricingInfo(b config.Bench) PricingInfo {
	var info PricingInfo
	info.Ambient.Tier, _ = b.SelectedAmbientPricing()
	info.Ambient.Standard = PriceSheet{InputPer1M: b.AmbientStandard.InputPerM, OutputPer1M: b.AmbientStandard.OutputPerM}
	info.Ambient.Mini = PriceSheet{InputPer1M: b.AmbientMini.InputPerM, OutputPer1M: b.AmbientMini.OutputPerM}
	info.Nous = PriceSheet{InputPer1M: b.Nous.InputPerM, OutputPer1M: b.Nous.OutputPerM}
	return info
}

// Providers builds the ambient and nous endpoints from cfg. Both API keys
// are required.
func Providers(cfg config.Config, opts ...llm.Option) ([]Provider, error) {
	tier, ambientPrice := cfg.Bench.SelectedAmbientPricing()
	specs := []struct {
		provider config.Provider
		pricing  Pricing
	}{
		{cfg.Ambient, Pricing{Tier: tier, InputPerM: ambientPrice.InputPerM, OutputPerM: ambientPrice.OutputPerM}},
		{cfg.Nous, Pricing{Tier: "standard", InputPerM: cfg.Bench.Nous.InputPerM, OutputPerM: cfg.Bench.Nous.OutputPerM}},
	}

	providers := make([]Provider, 0, len(specs))
	for _, s := range specs {
		if s.provider.APIKey == "" {
			return nil, fmt.Errorf("%s_API_KEY is not set", strings.ToUpper(s.provider.Name))
		}
		client, err := llm.NewOpenAIClient(llm.Config{
			Provider:  s.provider.Name,
			BaseURL:   s.provider.BaseURL,
			APIKey:    s.provider.APIKey,
			Model:     s.provider.Model,
			MaxTokens: s.provider.MaxTokens,
			Timeout:   cfg.Bench.Timeout,
		}, opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, Provider{
			Name:      s.provider.Name,
			Client:    client,
			Model:     s.provider.Model,
			MaxTokens: s.provider.MaxTokens,
			Pricing:   s.pricing,
		})
	}
	return providers, nil
}
