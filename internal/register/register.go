// Package register implements the station registration workflow: capability
// check, field validation, idempotency against the canonical key, a live
// catalog lookup, then document creation and backfill scheduling.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/riverwatch/hydrosync/internal/audit"
	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
	"github.com/riverwatch/hydrosync/internal/observability"
	"github.com/riverwatch/hydrosync/internal/provider/hydromet"
)

// Principal is the authenticated caller.
type Principal struct {
	Name  string
	Admin bool
}

// Draft is a registration request. Field and range constraints are enforced
// before anything is looked up or written.
type Draft struct {
	Provider  string         `json:"provider" validate:"required,oneof=environment_canada usgs other"`
	Code      string         `json:"station_id" validate:"required"`
	Name      string         `json:"station_name" validate:"required"`
	Country   string         `json:"country" validate:"required"`
	Latitude  float64        `json:"latitude" validate:"latitude"`
	Longitude float64        `json:"longitude" validate:"longitude"`
	Region    string         `json:"province_or_state"`
	Metadata  map[string]any `json:"provider_metadata"`
}

// Store is the persistence surface the workflow needs.
type Store interface {
	GetStation(ctx context.Context, key identity.Key) (domain.Station, error)
	PutStation(ctx context.Context, station domain.Station) error
	DeactivateStation(ctx context.Context, key identity.Key) error
}

// Catalog verifies station codes against the live provider catalog.
type Catalog interface {
	LookupStation(ctx context.Context, code string) (*hydromet.StationInfo, error)
}

// Auditor records lifecycle events.
type Auditor interface {
	Record(ctx context.Context, eventType string, station identity.Key, severity, format string, args ...any)
}

// EnqueueFunc schedules a historical backfill for a newly created station.
type EnqueueFunc func(station domain.Station)

// Workflow registers and deactivates stations.
type Workflow struct {
	store    Store
	catalog  Catalog
	auditor  Auditor
	enqueue  EnqueueFunc
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewWorkflow creates a registration workflow. enqueue may be nil when no
// backfill scheduling is wanted.
func NewWorkflow(st Store, catalog Catalog, auditor Auditor, enqueue EnqueueFunc, logger *slog.Logger, metrics *observability.Metrics) *Workflow {
	return &Workflow{
		store:    st,
		catalog:  catalog,
		auditor:  auditor,
		enqueue:  enqueue,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register creates a station and schedules its backfill. Re-registering an
// existing station returns its key without touching it; no partial state is
// left behind on any failure.
func (w *Workflow) Register(ctx context.Context, principal Principal, draft Draft) (identity.Key, error) {
	if !principal.Admin {
		return "", fmt.Errorf("%w: %s may not register stations", domain.ErrUnauthorized, principal.Name)
	}

	if err := w.validate.Struct(draft); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}

	key := identity.NewKey(draft.Provider, draft.Code)

	existing, err := w.store.GetStation(ctx, key)
	switch {
	case err == nil:
		if !existing.Active {
			existing.Active = true
			existing.UpdatedAt = domain.Now()
			if err := w.store.PutStation(ctx, existing); err != nil {
				return "", err
			}
			w.logger.Info("station reactivated", "key", key)
		}
		return key, nil
	case !isUnknownStation(err):
		return "", err
	}

	info, err := w.catalog.LookupStation(ctx, draft.Code)
	if err != nil {
		return "", err
	}

	now := domain.Now()
	station := domain.Station{
		Provider:     domain.Provider(draft.Provider),
		Code:         draft.Code,
		Name:         draft.Name,
		Country:      draft.Country,
		Latitude:     draft.Latitude,
		Longitude:    draft.Longitude,
		Active:       true,
		Region:       firstNonEmpty(draft.Region, info.Province),
		Metadata:     draft.Metadata,
		RegisteredBy: principal.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := w.store.PutStation(ctx, station); err != nil {
		return "", err
	}

	if w.enqueue != nil {
		w.enqueue(station)
	}
	w.auditor.Record(ctx, audit.TypeStationRegistered, key, audit.SeverityInfo,
		"station %s registered by %s", key, principal.Name)
	return key, nil
}

// Deactivate marks a station inactive. Its document and readings are kept.
func (w *Workflow) Deactivate(ctx context.Context, principal Principal, rawID string) error {
	if !principal.Admin {
		return fmt.Errorf("%w: %s may not deactivate stations", domain.ErrUnauthorized, principal.Name)
	}

	key, recognized := identity.Resolve(rawID)
	if !recognized {
		w.metrics.IdentityUnrecognized.Inc()
		w.logger.Warn("unrecognized station identifier", "raw", rawID)
	}
	if err := w.store.DeactivateStation(ctx, key); err != nil {
		return err
	}
	w.auditor.Record(ctx, audit.TypeStationRemoved, key, audit.SeverityInfo,
		"station %s deactivated by %s", key, principal.Name)
	return nil
}

func isUnknownStation(err error) bool {
	return errors.Is(err, domain.ErrUnknownStation)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
