package authvault

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vportela/authvault/internal/outcome"
)

// Builder assembles a [Client]. Required collaborators are enforced at Build
// time, so initialization-order mistakes fail during construction instead of
// at first use.
//
// Builder instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	redis   *redis.Client
	storage StorageClient

	enroller  Enroller
	responder Responder
	parser    MessageParser
	transport PushTransport
	sink      OutcomeSink

	built bool
}

// New creates a Builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the default storage client.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithStorage supplies a custom [StorageClient], replacing the Redis default.
func (b *Builder) WithStorage(storage StorageClient) *Builder {
	b.storage = storage
	return b
}

// WithEnroller supplies the enrollment collaborator.
func (b *Builder) WithEnroller(enroller Enroller) *Builder {
	b.enroller = enroller
	return b
}

// WithResponder supplies the verification collaborator. Required.
func (b *Builder) WithResponder(responder Responder) *Builder {
	b.responder = responder
	return b
}

// WithMessageParser replaces the default JWT message parser.
func (b *Builder) WithMessageParser(parser MessageParser) *Builder {
	b.parser = parser
	return b
}

// WithTransport supplies the push transport for token registration.
func (b *Builder) WithTransport(transport PushTransport) *Builder {
	b.transport = transport
	return b
}

// WithOutcomeSink supplies the sink receiving dispatched results. Defaults to
// a no-op sink.
func (b *Builder) WithOutcomeSink(sink OutcomeSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger supplies the structured logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.config.Logger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the repository, pipeline, and
// dispatcher, and returns the ready Client. A Builder builds at most once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storage := b.storage
	if storage == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or storage client required")
		}
		storage = NewRedisStorageClient(b.redis, cfg.Storage.KeyPrefix)
	}

	if b.responder == nil {
		return nil, errors.New("responder required")
	}

	metrics := NewMetrics(cfg.Metrics)
	repo := newRepository(storage, cfg.Notifications.MaxStored, cfg.Logger, metrics)

	parser := b.parser
	if parser == nil {
		parser = NewJWTMessageParser(repo)
	}

	dispatcher := outcome.NewDispatcher(outcome.Config{
		BufferSize: cfg.Dispatcher.BufferSize,
		DropIfFull: cfg.Dispatcher.DropIfFull,
	}, b.sink)

	client := &Client{
		config:     cfg,
		repo:       repo,
		dispatcher: dispatcher,
		sink:       b.sink,
		metrics:    metrics,
	}
	client.pipeline = &pipeline{
		repo:       repo,
		parser:     parser,
		enroller:   b.enroller,
		responder:  b.responder,
		transport:  b.transport,
		dispatcher: dispatcher,
		metrics:    metrics,
	}

	b.built = true

	return client, nil
}
