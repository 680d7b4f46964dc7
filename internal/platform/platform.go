// Package platform wires configured models, the ontology and cluster messaging together.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/haxdai/SWBPlatform-sub000/internal/config"
	"github.com/haxdai/SWBPlatform-sub000/internal/msgcenter"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/haxdai/SWBPlatform-sub000/internal/status"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/backends"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/cached"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrUnknownModel is returned when a model is not configured
var ErrUnknownModel = errors.New("platform: unknown model")

// Platform holds the models of a node.
type Platform struct {
	Config *config.Config

	Ontology  *semantic.Ontology
	Observers *semantic.Observers
	Registry  *semantic.Registry

	// Messages is the message center of this node, or nil if messaging is disabled.
	Messages *msgcenter.Center

	status  *status.Status
	logger  *slog.Logger
	metrics *metrics

	models map[string]*semantic.Model
	names  []string // model names in configuration order
	stores []triplestore.Store
}

// Open opens all models configured in cfg and starts the message center.
// Progress is reported to st, which may be nil.
func Open(ctx context.Context, cfg *config.Config, st *status.Status) (platform *Platform, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	platform = &Platform{
		Config: cfg,

		Ontology: semantic.NewOntology(),
		Registry: new(semantic.Registry),

		status:  st,
		logger:  st.Logger(),
		metrics: newMetrics(),

		models: make(map[string]*semantic.Model, len(cfg.Models)),
	}
	platform.Observers = &semantic.Observers{Logger: platform.logger}
	platform.Observers.Observe("", semantic.ObserverFunc(platform.observe))

	// close everything opened so far if anything fails
	defer func() {
		if err != nil {
			platform.Close()
			platform = nil
		}
	}()

	if err := st.DoStage(status.StageOpen, func() error {
		return platform.openModels(ctx)
	}); err != nil {
		return nil, err
	}

	if err := st.DoStage(status.StageOntology, func() error {
		return platform.ReloadOntology(ctx)
	}); err != nil {
		return nil, err
	}

	if err := st.DoStage(status.StageMessages, func() error {
		return platform.startMessages(ctx)
	}); err != nil {
		return nil, err
	}

	return platform, nil
}

func (platform *Platform) openModels(ctx context.Context) error {
	for i, mc := range platform.Config.Models {
		platform.status.SetCT(i, len(platform.Config.Models))

		raw, err := backends.Open(ctx, mc.Store, platform.logger)
		if err != nil {
			return fmt.Errorf("model %q: %w", mc.Name, err)
		}
		platform.stores = append(platform.stores, raw)

		model, err := semantic.NewModel(mc.Name, mc.Namespace, platform.metrics.instrument(mc.Name, mc.Store.Type, raw), semantic.Options{
			Graph:     mc.Graph,
			Ontology:  platform.Ontology,
			Observers: platform.Observers,
			CacheSize: platform.Config.ObjectCache,
			Logger:    platform.logger.With(slog.String("model", mc.Name)),
			OnAccess:  platform.onAccess,
			OnChange:  platform.onChange,
			OnReset:   func() { platform.send(msgcenter.KindReset, mc.Name) },
		})
		if err != nil {
			return fmt.Errorf("model %q: %w", mc.Name, err)
		}
		if err := model.LoadAliases(ctx); err != nil {
			return fmt.Errorf("model %q: %w", mc.Name, err)
		}

		platform.metrics.registerModel(model, raw)
		platform.models[mc.Name] = model
		platform.names = append(platform.names, mc.Name)

		platform.logger.Info("opened model", slog.String("model", mc.Name), slog.String("store", mc.Store.Type))
	}
	platform.status.SetCT(len(platform.Config.Models), len(platform.Config.Models))
	return nil
}

// startMessages starts the configured message center, if any
func (platform *Platform) startMessages(ctx context.Context) error {
	mc := platform.Config.Messages

	var transport msgcenter.Transport
	switch mc.Transport {
	case "", config.TransportNone:
		return nil
	case config.TransportUDP:
		peers := mc.Peers
		if mc.Broadcast != "" {
			peers = append(append([]string{}, peers...), mc.Broadcast)
		}
		udp, err := msgcenter.NewUDP(mc.Listen, peers...)
		if err != nil {
			return err
		}
		udp.Logger = platform.logger
		transport = udp
	case config.TransportNATS:
		nats, err := msgcenter.NewNATS(mc.URL, mc.Subject, "swb "+platform.Config.Node)
		if err != nil {
			return err
		}
		transport = nats
	}

	center := msgcenter.New(platform.Config.Node, transport, platform.logger)
	center.Handle(msgcenter.KindHit, platform.onRemoteHit)
	center.Handle(msgcenter.KindInvalidate, platform.onRemoteInvalidate)
	center.Handle(msgcenter.KindReset, platform.onRemoteReset)

	platform.Messages = center
	platform.metrics.registerMessages(center)

	return center.Start(ctx)
}

// Model returns the model with the given name.
func (platform *Platform) Model(name string) (*semantic.Model, bool) {
	model, ok := platform.models[name]
	return model, ok
}

// Models returns all models in configuration order.
func (platform *Platform) Models() []*semantic.Model {
	models := make([]*semantic.Model, len(platform.names))
	for i, name := range platform.names {
		models[i] = platform.models[name]
	}
	return models
}

// Admin returns the model holding the ontology.
func (platform *Platform) Admin() *semantic.Model {
	return platform.models[platform.Config.Admin]
}

// Store returns the store backing the named model.
func (platform *Platform) Store(name string) (triplestore.Store, bool) {
	model, ok := platform.models[name]
	if !ok {
		return nil, false
	}
	return model.Store, true
}

// Logger returns the logger of this platform.
func (platform *Platform) Logger() *slog.Logger {
	return platform.logger
}

// Gatherer returns the metrics of this platform.
func (platform *Platform) Gatherer() prometheus.Gatherer {
	return platform.metrics.registry
}

// ReloadOntology reloads the ontology from the admin model.
func (platform *Platform) ReloadOntology(ctx context.Context) error {
	admin := platform.Admin()
	if err := platform.Ontology.Load(ctx, admin.Store, admin.Graph); err != nil {
		return err
	}
	platform.logger.Info("loaded ontology",
		slog.Int("classes", len(platform.Ontology.Classes())),
		slog.Int("properties", len(platform.Ontology.Properties())),
	)
	return nil
}

// Import imports statements into the named model.
// Importing into the admin model reloads the ontology.
func (platform *Platform) Import(ctx context.Context, name string, r io.Reader, format rdf.Format) (count int, err error) {
	model, ok := platform.Model(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	err = platform.status.DoStage(status.StageImport, func() error {
		reader := &status.Reader{Reader: r, Progress: platform.status.Rewritable()}
		count, err = model.Import(ctx, reader, format)
		return err
	})
	if err != nil {
		return count, err
	}

	if name == platform.Config.Admin {
		return count, platform.ReloadOntology(ctx)
	}
	return count, nil
}

// Export writes the statements of the named model to w.
func (platform *Platform) Export(ctx context.Context, name string, w io.Writer, format rdf.Format) error {
	model, ok := platform.Model(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return platform.status.DoStage(status.StageExport, func() error {
		return model.Export(ctx, &status.Writer{Writer: w, Progress: platform.status.Rewritable()}, format)
	})
}

// observe is a global observer counting events
func (platform *Platform) observe(event semantic.Event) error {
	platform.metrics.events.WithLabelValues(event.Kind.String()).Inc()
	platform.logger.Debug("object event",
		slog.String("kind", event.Kind.String()),
		slog.String("object", event.Object.URI()),
		slog.String("property", event.Property),
	)
	return nil
}

func (platform *Platform) onAccess(uri string) {
	platform.send(msgcenter.KindHit, uri)
}

func (platform *Platform) onChange(uri string) {
	platform.send(msgcenter.KindInvalidate, uri)
}

// send sends a message, if messaging is enabled
func (platform *Platform) send(kind, payload string) {
	if platform.Messages == nil {
		return
	}
	if err := platform.Messages.Send(context.Background(), kind, payload); err != nil {
		platform.logger.Debug("failed to send message", slog.String("kind", kind), slog.Any("err", err))
	}
}

func (platform *Platform) onRemoteHit(message msgcenter.Message) {
	platform.metrics.remoteHits.Inc()
}

func (platform *Platform) onRemoteInvalidate(message msgcenter.Message) {
	platform.metrics.invalidations.Inc()
	for _, store := range platform.stores {
		if cs, ok := store.(*cached.Store); ok {
			cs.Invalidate()
		}
	}
	// held references reload, and the next lookup checks that the object still exists
	for _, model := range platform.models {
		model.Cache.Invalidate(message.Payload)
		model.Cache.Remove(message.Payload)
	}
}

func (platform *Platform) onRemoteReset(message msgcenter.Message) {
	model, ok := platform.models[message.Payload]
	if !ok {
		platform.logger.Debug("reset of unknown model", slog.String("model", message.Payload))
		return
	}

	platform.metrics.invalidations.Inc()
	for _, store := range platform.stores {
		if cs, ok := store.(*cached.Store); ok {
			cs.Invalidate()
		}
	}
	model.Cache.Clear()
}

// Close stops the message center and closes all models and stores.
func (platform *Platform) Close() error {
	var errs []error
	if platform.Messages != nil {
		errs = append(errs, platform.Messages.Close())
	}
	for _, name := range platform.names {
		errs = append(errs, platform.models[name].Close())
	}
	for _, store := range platform.stores {
		errs = append(errs, store.Close())
	}
	return errors.Join(errs...)
}
