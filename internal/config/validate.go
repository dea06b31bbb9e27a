package config

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const minKeyLength = 16

// Validate checks every section and reports all failures together.
func (c *Config) Validate() error {
	return validation.Errors{
		"server":   c.Server.Validate(),
		"database": c.Database.Validate(),
		"pipeline": c.Pipeline.Validate(),
		"secrets":  c.Secrets.Validate(),
		"events":   c.Events.Validate(),
	}.Filter()
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, is.Port),
		validation.Field(&s.BaseURL, validation.Required, is.URL),
		validation.Field(&s.RateLimit, validation.Min(0)),
		validation.Field(&s.ShutdownTimeout, validation.Required),
		validation.Field(&s.TrustedProxies, validation.Each(validation.By(func(v any) error {
			entry, _ := v.(string)
			if is.CIDR.Validate(entry) == nil || is.IP.Validate(entry) == nil {
				return nil
			}
			return errors.New("must be a CIDR range or an IP address")
		}))),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (p PipelineConfig) Validate() error {
	maxStageTTL := p.GenesisTTL
	if p.ValidationTTL > maxStageTTL {
		maxStageTTL = p.ValidationTTL
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.GenesisTTL, validation.Required, validation.Min(0)),
		validation.Field(&p.ValidationTTL, validation.Required, validation.Min(0)),
		validation.Field(&p.RoutingTTL, validation.Required, validation.Min(0)),
		validation.Field(&p.NonceTTL,
			validation.Min(MinNonceTTL),
			validation.Min(maxStageTTL).Error("must outlive every stage token"),
		),
	)
}

func (s SecretsConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.GenesisKey, validation.Required.Error("set GENESIS_SECRET or MASTER_SECRET"), validation.Length(minKeyLength, 0)),
		validation.Field(&s.ValidationKey,
			validation.Required.Error("set VALIDATION_SECRET or MASTER_SECRET"),
			validation.Length(minKeyLength, 0),
			validation.By(func(any) error {
				if s.ValidationKey != "" && s.ValidationKey == s.GenesisKey {
					return errors.New("must differ from the genesis key")
				}
				return nil
			}),
		),
		validation.Field(&s.RoutingKey, validation.Length(minKeyLength, 0)),
		validation.Field(&s.ContextKey, validation.Length(minKeyLength, 0)),
	)
}

func (e EventsConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Sink, validation.Required, validation.In(EventSinkNone, EventSinkWatermill, EventSinkDapr)),
		validation.Field(&e.DaprPubSub, validation.When(e.Sink == EventSinkDapr, validation.Required)),
		validation.Field(&e.DaprTopic, validation.When(e.Sink == EventSinkDapr, validation.Required)),
	)
}
