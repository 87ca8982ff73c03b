// Package orchestrator implements the core's single stable public
// surface (spec.md §4.9, §6.4): translate, store_agent, get_agent,
// round_trip_test, batch_translate, discovery, and the cache and
// compatibility-matrix bookkeeping around them. Persistent store layout,
// the adapter ABI, and the event schema are internal, versioned details
// callers outside this package must not depend on.
package orchestrator

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrysalis-dev/morph-core/internal/adapter"
	"github.com/chrysalis-dev/morph-core/internal/canonicaljson"
	"github.com/chrysalis-dev/morph-core/internal/crypto"
	"github.com/chrysalis-dev/morph-core/internal/errkit"
	"github.com/chrysalis-dev/morph-core/internal/events"
	"github.com/chrysalis-dev/morph-core/internal/shadow"
	"github.com/chrysalis-dev/morph-core/internal/store"
)

// Options configures an Orchestrator (spec.md §6.6).
type Options struct {
	EnableCache      bool
	MinFidelityScore float64
	AutoPersist      bool
	CacheCapacity    int
	ShadowIdentity   func(native map[string]interface{}) shadow.Identity

	// Archiver, if set, mirrors every persisted snapshot to cold storage
	// (e.g. store.S3SnapshotArchiver) in addition to the primary
	// TemporalStore. Archive failures never fail the primary write: on
	// translate they become a warning on the result, and StoreAgent
	// discards them.
	Archiver store.Archiver
}

// TranslateOptions tunes a single translate call.
type TranslateOptions struct {
	Persist       bool
	EmbedShadow   bool
	UseCache      bool
	CorrelationID string
}

// TranslationResult is the outcome of translate (spec.md §4.9, §7): a
// result-of-T shape for callers that prefer it over exceptions.
type TranslationResult struct {
	Success        bool
	Native         map[string]interface{}
	Canonical      adapter.CanonicalAgent
	FromCache      bool
	FidelityScore  float64
	RestorationKey string
	Errors         []*errkit.Error
	Warnings       []string
	CorrelationID  string
}

// RoundTripResult is the outcome of round_trip_test.
type RoundTripResult struct {
	Original      map[string]interface{}
	Canonical     adapter.CanonicalAgent
	Reconstructed map[string]interface{}
	FidelityScore float64
	Diff          []string
}

// BatchResult is the outcome of batch_translate.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []TranslationResult
}

// Orchestrator wires the adapter registry, temporal store, shadow
// signer, cache, compatibility matrix, and event bus into the
// operations spec.md §4.9 names.
type Orchestrator struct {
	store    store.TemporalStore
	registry *Registry
	bus      *events.Bus
	signer   shadow.Signer
	opts     Options

	cache  *cache
	compat *compatMatrix

	mu       sync.Mutex
	disposed bool
}

// New constructs an Orchestrator. bus may be nil, in which case no
// events are published (spec.md §5: "must be possible to run translate
// with no subscribers").
func New(st store.TemporalStore, registry *Registry, signer shadow.Signer, bus *events.Bus, opts Options) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: registry,
		bus:      bus,
		signer:   signer,
		opts:     opts,
		cache:    newCache(opts.CacheCapacity),
		compat:   newCompatMatrix(),
	}
}

func (o *Orchestrator) publish(evt events.Event) {
	if o.bus != nil {
		o.bus.Publish(evt)
	}
}

// archive mirrors snap to the configured cold-storage archiver, if any.
// A non-nil return is a warning string for the caller's result, never a
// hard failure: the primary TemporalStore write already succeeded.
func (o *Orchestrator) archive(ctx context.Context, snap store.Snapshot) string {
	if o.opts.Archiver == nil {
		return ""
	}
	if err := o.opts.Archiver.Archive(ctx, snap); err != nil {
		return fmt.Sprintf("cold-storage archive failed for %s@%d: %v", snap.AgentID, snap.Version, err)
	}
	return ""
}

func (o *Orchestrator) checkDisposed() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return errkit.New(errkit.KindDisposed, "orchestrator", "*", "orchestrator has been closed")
	}
	return nil
}

func stableHash(native map[string]interface{}) (string, error) {
	canon, err := canonicaljson.Marshal(native)
	if err != nil {
		return "", err
	}
	h := crypto.Hash(canon)
	return hex.EncodeToString(h[:]), nil
}

func cacheKey(nativeHash, target string) string {
	return nativeHash + "|" + target
}

func frameworkOf(native map[string]interface{}) (string, error) {
	fw, _ := native["framework"].(string)
	if fw == "" {
		return "", errkit.New(errkit.KindValidation, "orchestrator", "translate", "native agent missing \"framework\" field")
	}
	return fw, nil
}

// Translate performs native -> canonical -> native across frameworks
// (spec.md §4.9): it selects the source adapter by native.framework,
// builds the canonical graph, optionally persists a snapshot, asks the
// target adapter to reconstruct a native agent, scores fidelity, and
// optionally wraps the result in a shadow envelope.
func (o *Orchestrator) Translate(ctx context.Context, native map[string]interface{}, targetFramework string, opts TranslateOptions) (TranslationResult, error) {
	if err := o.checkDisposed(); err != nil {
		return TranslationResult{}, err
	}
	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	sourceFramework, err := frameworkOf(native)
	if err != nil {
		e := err.(*errkit.Error).WithCorrelation(correlationID)
		return TranslationResult{Success: false, Errors: []*errkit.Error{e}, CorrelationID: correlationID}, nil
	}

	useCache := opts.UseCache && o.opts.EnableCache
	var nativeHash string
	if useCache {
		nativeHash, err = stableHash(native)
		if err == nil {
			if cached, ok := o.cache.get(cacheKey(nativeHash, targetFramework)); ok {
				cached.FromCache = true
				cached.CorrelationID = correlationID
				return cached, nil
			}
		}
	}

	sourceAdapter, ok := o.registry.Get(sourceFramework)
	if !ok {
		e := errkit.New(errkit.KindConfiguration, "orchestrator", "translate", fmt.Sprintf("no adapter registered for framework %q", sourceFramework)).WithCorrelation(correlationID)
		return TranslationResult{Success: false, Errors: []*errkit.Error{e}, CorrelationID: correlationID}, nil
	}
	targetAdapter, ok := o.registry.Get(targetFramework)
	if !ok {
		e := errkit.New(errkit.KindConfiguration, "orchestrator", "translate", fmt.Sprintf("no adapter registered for framework %q", targetFramework)).WithCorrelation(correlationID)
		return TranslationResult{Success: false, Errors: []*errkit.Error{e}, CorrelationID: correlationID}, nil
	}

	validation := sourceAdapter.ValidateNative(native)
	if !validation.Valid {
		var errs []*errkit.Error
		for _, issue := range validation.Errors {
			errs = append(errs, errkit.New(errkit.KindValidation, "adapter", "validate_native", issue.Message).WithCorrelation(correlationID))
		}
		return TranslationResult{Success: false, Errors: errs, CorrelationID: correlationID}, nil
	}

	canonicalAgent, err := sourceAdapter.ToCanonical(native)
	if err != nil {
		e := errkit.Wrap(errkit.KindTranslation, "adapter", "to_canonical", err).WithCorrelation(correlationID)
		return TranslationResult{Success: false, Errors: []*errkit.Error{e}}, nil
	}
	o.publish(events.Event{Type: events.AgentIngested, Primitive: events.PrimitiveAgent, CorrelationID: correlationID,
		Payload: map[string]interface{}{"agent_uri": canonicalAgent.AgentURI, "framework": sourceFramework}})

	var warnings []string
	for _, fw := range []string{sourceFramework, targetFramework} {
		if status, ok := o.registry.Status(fw); ok && status == HealthDegraded {
			warnings = append(warnings, fmt.Sprintf("adapter %q is degraded", fw))
		}
	}
	persist := opts.Persist || o.opts.AutoPersist
	if persist {
		snap, err := o.store.CreateSnapshot(ctx, canonicalAgent.AgentURI, canonicalAgent.Quads, map[string]interface{}{"framework": sourceFramework})
		if err != nil {
			e := errkit.Wrap(errkit.KindStorage, "store", "create_snapshot", err).WithCorrelation(correlationID)
			return TranslationResult{Success: false, Errors: []*errkit.Error{e}}, nil
		}
		o.publish(events.Event{Type: events.AgentStored, Primitive: events.PrimitiveStorage, CorrelationID: correlationID,
			Payload: map[string]interface{}{"agent_uri": canonicalAgent.AgentURI}})
		if w := o.archive(ctx, snap); w != "" {
			warnings = append(warnings, w)
		}
	}

	reconstructed, err := targetAdapter.FromCanonical(canonicalAgent)
	if err != nil {
		e := errkit.Wrap(errkit.KindTranslation, "adapter", "from_canonical", err).WithCorrelation(correlationID)
		return TranslationResult{Success: false, Errors: []*errkit.Error{e}}, nil
	}

	if canonicalAgent.Metadata.FidelityScore < o.opts.MinFidelityScore {
		warnings = append(warnings, fmt.Sprintf("fidelity %.3f below configured minimum %.3f", canonicalAgent.Metadata.FidelityScore, o.opts.MinFidelityScore))
	}

	result := TranslationResult{
		Success:       true,
		Native:        reconstructed,
		Canonical:     canonicalAgent,
		FidelityScore: canonicalAgent.Metadata.FidelityScore,
		Warnings:      warnings,
		CorrelationID: correlationID,
	}

	if opts.EmbedShadow {
		if !targetAdapter.SupportsShadow() {
			e := errkit.New(errkit.KindConfiguration, "orchestrator", "translate", fmt.Sprintf("target adapter %q does not support shadow embedding", targetFramework)).WithCorrelation(correlationID)
			result.Errors = append(result.Errors, e)
		} else if o.signer == nil {
			e := errkit.New(errkit.KindConfiguration, "orchestrator", "translate", "shadow embedding requested but no signer configured").WithCorrelation(correlationID)
			result.Errors = append(result.Errors, e)
		} else {
			identity := shadow.Identity{Name: sourceFramework, Designation: targetFramework, TimestampUnixNano: time.Now().UnixNano(), ID: canonicalAgent.AgentURI}
			if o.opts.ShadowIdentity != nil {
				identity = o.opts.ShadowIdentity(native)
			}
			withShadow, key, err := shadow.Build(o.signer, native, canonicalAgent, reconstructed, targetAdapter.ShadowAttachmentPath(), identity)
			if err != nil {
				e := errkit.Wrap(errkit.KindTranslation, "shadow", "build", err).WithCorrelation(correlationID)
				result.Errors = append(result.Errors, e)
			} else {
				result.Native = withShadow
				result.RestorationKey = key
			}
		}
	}

	o.compat.record(sourceFramework, targetFramework, canonicalAgent.Metadata.FidelityScore)
	o.publish(events.Event{Type: events.AgentTranslated, Primitive: events.PrimitiveTranslation, CorrelationID: correlationID,
		Payload: map[string]interface{}{"source": sourceFramework, "target": targetFramework, "fidelity": canonicalAgent.Metadata.FidelityScore}})

	if useCache && nativeHash != "" {
		o.cache.put(cacheKey(nativeHash, targetFramework), result)
	}

	return result, nil
}

// StoreAgent translates native to canonical via its own framework's
// adapter and persists a snapshot, without translating to any target.
func (o *Orchestrator) StoreAgent(ctx context.Context, native map[string]interface{}) (store.Snapshot, error) {
	if err := o.checkDisposed(); err != nil {
		return store.Snapshot{}, err
	}
	sourceFramework, err := frameworkOf(native)
	if err != nil {
		return store.Snapshot{}, err
	}
	a, ok := o.registry.Get(sourceFramework)
	if !ok {
		return store.Snapshot{}, errkit.New(errkit.KindConfiguration, "orchestrator", "store_agent", fmt.Sprintf("no adapter registered for framework %q", sourceFramework))
	}
	canonicalAgent, err := a.ToCanonical(native)
	if err != nil {
		return store.Snapshot{}, errkit.Wrap(errkit.KindTranslation, "adapter", "to_canonical", err)
	}
	snap, err := o.store.CreateSnapshot(ctx, canonicalAgent.AgentURI, canonicalAgent.Quads, map[string]interface{}{"framework": sourceFramework})
	if err != nil {
		return store.Snapshot{}, errkit.Wrap(errkit.KindStorage, "store", "create_snapshot", err)
	}
	o.publish(events.Event{Type: events.AgentStored, Primitive: events.PrimitiveStorage,
		Payload: map[string]interface{}{"agent_uri": canonicalAgent.AgentURI}})
	_ = o.archive(ctx, snap)
	return snap, nil
}

// GetAgent returns an agent's canonical graph, or (if target is
// non-empty) its translation into target's native shape. Absence is
// explicit: (nil, false, nil), not an error (spec.md §7 NotFound kind).
func (o *Orchestrator) GetAgent(ctx context.Context, agentURI, target string) (interface{}, bool, error) {
	if err := o.checkDisposed(); err != nil {
		return nil, false, err
	}
	snap, ok, err := o.store.GetSnapshot(ctx, agentURI, store.PointInTime{Latest: true})
	if err != nil {
		return nil, false, errkit.Wrap(errkit.KindStorage, "store", "get_snapshot", err)
	}
	if !ok {
		return nil, false, nil
	}
	if target == "" {
		return snap, true, nil
	}
	targetAdapter, ok := o.registry.Get(target)
	if !ok {
		return nil, false, errkit.New(errkit.KindConfiguration, "orchestrator", "get_agent", fmt.Sprintf("no adapter registered for framework %q", target))
	}
	canonicalAgent := adapter.CanonicalAgent{AgentURI: agentURI, Quads: snap.Quads}
	native, err := targetAdapter.FromCanonical(canonicalAgent)
	if err != nil {
		return nil, false, errkit.Wrap(errkit.KindTranslation, "adapter", "from_canonical", err)
	}
	return native, true, nil
}

// RoundTripTest translates native to canonical and back through its own
// adapter, reporting the fields that differ between the original and
// the reconstruction (spec.md §4.9).
func (o *Orchestrator) RoundTripTest(ctx context.Context, native map[string]interface{}) (RoundTripResult, error) {
	if err := o.checkDisposed(); err != nil {
		return RoundTripResult{}, err
	}
	fw, err := frameworkOf(native)
	if err != nil {
		return RoundTripResult{}, err
	}
	a, ok := o.registry.Get(fw)
	if !ok {
		return RoundTripResult{}, errkit.New(errkit.KindConfiguration, "orchestrator", "round_trip_test", fmt.Sprintf("no adapter registered for framework %q", fw))
	}
	canonicalAgent, err := a.ToCanonical(native)
	if err != nil {
		return RoundTripResult{}, errkit.Wrap(errkit.KindTranslation, "adapter", "to_canonical", err)
	}
	reconstructed, err := a.FromCanonical(canonicalAgent)
	if err != nil {
		return RoundTripResult{}, errkit.Wrap(errkit.KindTranslation, "adapter", "from_canonical", err)
	}
	diff := diffShallow(native, reconstructed)
	return RoundTripResult{
		Original:      native,
		Canonical:     canonicalAgent,
		Reconstructed: reconstructed,
		FidelityScore: canonicalAgent.Metadata.FidelityScore,
		Diff:          diff,
	}, nil
}

// diffShallow reports top-level keys whose values differ by canonical
// JSON encoding (cheap, deterministic, good enough to surface drift
// without a full structural diff library).
func diffShallow(a, b map[string]interface{}) []string {
	var diffs []string
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	for k := range seen {
		av, aok := a[k]
		bv, bok := b[k]
		if aok != bok {
			diffs = append(diffs, k)
			continue
		}
		ac, _ := canonicaljson.Marshal(av)
		bc, _ := canonicaljson.Marshal(bv)
		if string(ac) != string(bc) {
			diffs = append(diffs, k)
		}
	}
	return diffs
}

// BatchTranslate runs Translate over every agent, bounded by parallel
// concurrent workers (spec.md §4.9, grounded on the teacher's audit
// streamer semaphore pattern). If continueOnError is false, the batch
// stops submitting new work as soon as one translation fails, though
// already-started workers still finish.
func (o *Orchestrator) BatchTranslate(ctx context.Context, agents []map[string]interface{}, target string, continueOnError bool, parallel int) (BatchResult, error) {
	if err := o.checkDisposed(); err != nil {
		return BatchResult{}, err
	}
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	results := make([]TranslationResult, len(agents))

	var wg sync.WaitGroup
	var abort sync.Once
	abortCh := make(chan struct{})
	aborted := func() bool {
		select {
		case <-abortCh:
			return true
		default:
			return false
		}
	}

	for i, native := range agents {
		if !continueOnError && aborted() {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, native map[string]interface{}) {
			defer wg.Done()
			defer func() { <-sem }()
			result, err := o.Translate(ctx, native, target, TranslateOptions{UseCache: true})
			if err != nil {
				result = TranslationResult{Success: false, Errors: []*errkit.Error{errkit.Wrap(errkit.KindTranslation, "orchestrator", "batch_translate", err)}}
			}
			results[idx] = result
			if !result.Success && !continueOnError {
				abort.Do(func() { close(abortCh) })
			}
		}(i, native)
	}
	wg.Wait()

	out := BatchResult{Total: len(agents)}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, r)
	}
	return out, nil
}

// DiscoverAgents delegates to the store's filtered discovery.
func (o *Orchestrator) DiscoverAgents(ctx context.Context, filter store.AgentFilter) ([]store.AgentSummary, error) {
	if err := o.checkDisposed(); err != nil {
		return nil, err
	}
	return o.store.DiscoverAgents(ctx, filter)
}

// ListAgents is discover_agents with an empty filter, paginated
// client-side over the store's result set.
func (o *Orchestrator) ListAgents(ctx context.Context, limit, offset int) ([]store.AgentSummary, error) {
	all, err := o.DiscoverAgents(ctx, store.AgentFilter{})
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// DeleteAgent removes an agent's entire history from the store.
func (o *Orchestrator) DeleteAgent(ctx context.Context, agentURI string) (bool, error) {
	if err := o.checkDisposed(); err != nil {
		return false, err
	}
	deleted, err := o.store.DeleteAgent(ctx, agentURI)
	if err != nil {
		return false, errkit.Wrap(errkit.KindStorage, "store", "delete_agent", err)
	}
	if deleted {
		o.publish(events.Event{Type: events.AgentDeleted, Primitive: events.PrimitiveStorage,
			Payload: map[string]interface{}{"agent_uri": agentURI}})
	}
	return deleted, nil
}

// GetAgentHistory returns every snapshot version recorded for agentURI.
func (o *Orchestrator) GetAgentHistory(ctx context.Context, agentURI string) ([]store.Snapshot, error) {
	if err := o.checkDisposed(); err != nil {
		return nil, err
	}
	hist, err := o.store.GetHistory(ctx, agentURI)
	if err != nil {
		return nil, errkit.Wrap(errkit.KindStorage, "store", "get_history", err)
	}
	return hist, nil
}

// ClearCache empties the translation cache; stats counters are not reset.
func (o *Orchestrator) ClearCache() {
	o.cache.clear()
}

// GetCacheStats returns a snapshot of cumulative cache behavior.
func (o *Orchestrator) GetCacheStats() CacheStats {
	return o.cache.snapshot()
}

// CompatibilityMatrix returns the running fidelity averages recorded
// per (source, target) framework pair.
func (o *Orchestrator) CompatibilityMatrix() []CompatibilityEntry {
	return o.compat.snapshot()
}

// Registry exposes the adapter registry for registration and health
// inspection by callers wiring the orchestrator together.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Close disposes the orchestrator and its registry's health-check
// loop. Double-close is a no-op; use after close returns DisposedError.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return nil
	}
	o.disposed = true
	o.registry.Stop()
	return nil
}
