package logic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/statstack/predictions-api/internal/models"
)

// ModelState tracks residency of the active model
type ModelState int32

const (
	ModelUnloaded ModelState = iota
	ModelLoading
	ModelLoaded
)

func (s ModelState) String() string {
	switch s {
	case ModelLoading:
		return "loading"
	case ModelLoaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// ResidentModel pairs a loaded model with the version record it came from
type ResidentModel struct {
	Version models.ModelVersion
	Model   PredictionModel
}

// ModelHolder keeps at most one resident model. Ensure runs the
// check-registry-then-load sequence under a single lock. Readers of the
// resident model never lock.
type ModelHolder struct {
	mu       sync.Mutex
	state    atomic.Int32
	resident atomic.Pointer[ResidentModel]

	registry ModelRegistry
	loader   ModelLoader
	logger   *zap.SugaredLogger
}

func NewModelHolder(registry ModelRegistry, loader ModelLoader, logger *zap.Logger) *ModelHolder {
	return &ModelHolder{
		registry: registry,
		loader:   loader,
		logger:   logger.Sugar(),
	}
}

func (h *ModelHolder) State() ModelState { return ModelState(h.state.Load()) }

// Current returns the resident model without consulting the registry.
func (h *ModelHolder) Current() *ResidentModel { return h.resident.Load() }

func (h *ModelHolder) setState(s ModelState) {
	h.state.Store(int32(s))
	modelState.Set(float64(s))
}

// Ensure returns the model for the registry's active version, loading it if
// the resident one is missing or stale. A failed load leaves the previous
// resident in place and reports ErrNoModel.
func (h *ModelHolder) Ensure(ctx context.Context) (*ResidentModel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	active, err := h.registry.Active(ctx)
	if err != nil {
		h.logger.Errorw("Failed to read active model version", "error", err)
		return nil, fmt.Errorf("%w: registry unavailable", ErrNoModel)
	}
	if active == nil {
		return nil, fmt.Errorf("%w; run the trainer with -activate first", ErrNoModel)
	}

	current := h.resident.Load()
	if current != nil && current.Version.Version == active.Version {
		return current, nil
	}

	h.setState(ModelLoading)
	model, err := h.load(*active)
	if err != nil {
		modelLoads.WithLabelValues("error").Inc()
		h.logger.Errorw("Failed to load model", "version", active.Version, "error", err)
		if current != nil {
			h.setState(ModelLoaded)
		} else {
			h.setState(ModelUnloaded)
		}
		return nil, fmt.Errorf("%w: version %s could not be loaded", ErrNoModel, active.Version)
	}

	rm := &ResidentModel{Version: *active, Model: model}
	h.resident.Store(rm)
	h.setState(ModelLoaded)
	modelLoads.WithLabelValues("ok").Inc()
	h.logger.Infow("Loaded prediction model", "version", active.Version, "features", model.FeatureCount())
	return rm, nil
}

func (h *ModelHolder) load(v models.ModelVersion) (model PredictionModel, err error) {
	// Artifact decoding must never take the process down.
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("panic while loading: %v", r)
		}
	}()

	model, err = h.loader(v.Artifacts)
	if err != nil {
		return nil, err
	}
	if v.FeatureCount > 0 && model.FeatureCount() != v.FeatureCount {
		return nil, fmt.Errorf("artifacts have %d features, registry says %d", model.FeatureCount(), v.FeatureCount)
	}
	return model, nil
}

// Invalidate drops the resident model so the next Ensure reconsults the registry.
func (h *ModelHolder) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resident.Store(nil)
	h.setState(ModelUnloaded)
}
