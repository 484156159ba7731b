package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	openrouterx "github.com/noeguerin/bistro-concierge/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Per-role overrides. Classification favors a small fast model; the
	// handlers can run a larger one.
	ClassifierModel        string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ClassifierTemperature  float64 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
	ReservationModel       string  `envconfig:"RESERVATION_MODEL" split_words:"true"`
	OrderModel             string  `envconfig:"ORDER_MODEL" split_words:"true"`
	InquiryModel           string  `envconfig:"INQUIRY_MODEL" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) base() openrouterx.Config {
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: c.MaxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// ClassifierConfig is the base config with the classifier overrides
// applied.
func (c Config) ClassifierConfig() openrouterx.Config {
	out := c.base()
	if v := strings.TrimSpace(c.ClassifierModel); v != "" {
		out.Model = v
	}
	if c.ClassifierTemperature >= 0 {
		out.Temperature = c.ClassifierTemperature
	}
	return out
}

// ReasonerConfigFor picks the model used when handling the given intent.
func (c Config) ReasonerConfigFor(intent contractx.Intent) openrouterx.Config {
	out := c.base()
	var override string
	switch intent {
	case contractx.IntentReservation:
		override = c.ReservationModel
	case contractx.IntentOrder:
		override = c.OrderModel
	case contractx.IntentGeneralInquiry:
		override = c.InquiryModel
	}
	if v := strings.TrimSpace(override); v != "" {
		out.Model = v
	}
	return out
}
