// Package normalize turns raw transport payloads into canonical records.
package normalize

import (
	"fmt"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/chrono"
)

type Config struct {
	PriceTier  PriceTierPolicy `json:"price_tier"`
	Vocabulary Vocabulary      `json:"review_vocabulary"`
	Selectors  Selectors       `json:"review_selectors"`
}

var DefaultConfig = Config{
	PriceTier:  FirstTier,
	Vocabulary: DefaultVocabulary,
	Selectors:  DefaultSelectors,
}

func (c Config) withDefaults() Config {
	if c.PriceTier == "" {
		c.PriceTier = DefaultConfig.PriceTier
	}
	if len(c.Vocabulary) == 0 {
		c.Vocabulary = DefaultConfig.Vocabulary
	}
	c.Selectors = c.Selectors.withDefaults()
	return c
}

func (c Config) Validate() error {
	c = c.withDefaults()
	if _, err := ParsePriceTierPolicy(string(c.PriceTier)); err != nil {
		return err
	}
	return c.Vocabulary.Validate()
}

type Normalizer struct {
	cfg  Config
	time chrono.TimeAPI
}

func New(cfg Config, time chrono.TimeAPI) (Normalizer, error) {
	cfg = cfg.withDefaults()
	err := cfg.Validate()
	if err != nil {
		return Normalizer{}, fmt.Errorf("invalid normalize config: %w", err)
	}
	return Normalizer{cfg: cfg, time: time}, nil
}

// Normalize converts payload into the records of target type t. Every
// returned record conforms to acquire.Schemas[t], a payload without the
// structure t requires fails with *acquire.NormalizeError.
func (n Normalizer) Normalize(t acquire.TargetType, payload transport.Payload) ([]acquire.Record, error) {
	if len(payload.Pages) == 0 {
		return nil, acquire.NewSchemaMismatch(t, "payload has no pages", nil)
	}

	var records []acquire.Record
	var err error
	switch t {
	case acquire.TargetSchedule:
		records, err = n.schedule(payload)
	case acquire.TargetReview:
		records, err = n.review(payload)
	case acquire.TargetShelterListing:
		records, err = n.shelter(payload)
	case acquire.TargetBookingItems:
		records, err = n.bookingItems(payload)
	default:
		return nil, acquire.NewSchemaMismatch(t, "unsupported target type", nil)
	}
	if err != nil {
		return nil, err
	}

	for i, r := range records {
		if !r.Conforms(t) {
			return nil, acquire.NewSchemaMismatch(t, fmt.Sprintf("record %d is missing required fields", i), nil)
		}
	}
	return records, nil
}
