package job

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hpumc/family-mapper/internal/dataset"
	"github.com/hpumc/family-mapper/internal/mapper"
	"github.com/hpumc/family-mapper/internal/model"
	"github.com/hpumc/family-mapper/internal/tabular"
	"github.com/hpumc/family-mapper/pkg/geocode"
)

// noResultsReason is recorded for queries the geocoder matched nothing for.
const noResultsReason = "No results found"

// Runner executes geocoding jobs against a store and a geocode client.
type Runner struct {
	store    *dataset.Store
	geocoder geocode.Client
	registry *Registry
	linkBase string
}

// NewRunner creates a Runner. linkBase is the profile-link prefix applied
// to the failures artifact; empty disables the link column.
func NewRunner(store *dataset.Store, geocoder geocode.Client, registry *Registry, linkBase string) *Runner {
	return &Runner{
		store:    store,
		geocoder: geocoder,
		registry: registry,
		linkBase: linkBase,
	}
}

// Run executes one geocoding job to a terminal state. It blocks; callers
// launch it on its own goroutine. The job id must already be registered.
// The uploaded temp file is removed and the cancellation flag cleared on
// every exit path, and no partial dataset survives cancellation or error.
func (r *Runner) Run(ctx context.Context, jobID, datasetName, uploadPath string) {
	logger := zap.L().With(
		zap.String("job_id", jobID),
		zap.String("dataset", datasetName),
	)

	var created bool

	defer func() {
		if err := os.Remove(uploadPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove uploaded temp file", zap.Error(err))
		}
		r.registry.clearCancel(jobID)
	}()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("geocoding job panicked", zap.Any("panic", rec))
			r.fail(jobID, datasetName, created, eris.Errorf("job: panic: %v", rec), logger)
		}
	}()

	if err := r.run(ctx, jobID, datasetName, uploadPath, &created, logger); err != nil {
		r.fail(jobID, datasetName, created, err, logger)
	}
}

func (r *Runner) run(ctx context.Context, jobID, datasetName, uploadPath string, created *bool, logger *zap.Logger) error {
	rows, err := tabular.ReadFile(uploadPath)
	if err != nil {
		return err
	}

	records, err := mapper.Resolve(rows)
	if err != nil {
		return err
	}
	logger.Info("resolved upload",
		zap.Int("raw_rows", len(rows)),
		zap.Int("valid_addresses", len(records)),
	)

	if err := r.store.Create(datasetName); err != nil {
		return err
	}
	*created = true

	r.registry.update(jobID, func(p *Progress) {
		p.Status = StatusGeocoding
		p.Total = len(records)
	})

	results := make([]model.GeocodeResult, 0, len(records))
	var failed []model.FailedAddress
	successful := 0

	for i, rec := range records {
		if r.registry.cancelRequested(jobID) {
			logger.Info("job canceled", zap.Int("at_row", i))
			r.registry.update(jobID, func(p *Progress) {
				p.Status = StatusCanceled
				p.Completed = true
			})
			if err := r.store.Remove(datasetName); err != nil {
				logger.Warn("failed to remove canceled dataset", zap.Error(err))
			}
			return nil
		}

		query := mapper.FullAddress(rec)
		r.registry.update(jobID, func(p *Progress) {
			p.CurrentAddress = query
			p.Progress = i + 1
		})

		result := model.GeocodeResult{AddressRecord: rec, FullAddress: query}

		res, geoErr := r.geocoder.Geocode(ctx, query)
		switch {
		case geoErr != nil:
			failed = append(failed, model.FailedAddress{
				AddressRecord: rec,
				FullAddress:   query,
				FailureReason: geoErr.Error(),
			})
			logger.Warn("geocode error", zap.String("address", query), zap.Error(geoErr))
		case !res.Matched:
			failed = append(failed, model.FailedAddress{
				AddressRecord: rec,
				FullAddress:   query,
				FailureReason: noResultsReason,
			})
			logger.Debug("no geocode results", zap.String("address", query))
		default:
			lat, lon := res.Latitude, res.Longitude
			result.Latitude = &lat
			result.Longitude = &lon
			successful++
			logger.Debug("geocoded",
				zap.String("address", query),
				zap.Float64("lat", lat),
				zap.Float64("lon", lon),
			)
		}

		results = append(results, result)
	}

	if err := r.store.WriteCache(datasetName, results); err != nil {
		return err
	}
	if len(failed) > 0 {
		if err := r.store.WriteFailed(datasetName, failed, r.linkBase); err != nil {
			return err
		}
	}
	if err := r.store.WriteOriginal(datasetName, rows); err != nil {
		return err
	}

	r.registry.update(jobID, func(p *Progress) {
		p.Status = StatusCompleted
		p.Completed = true
		p.Progress = len(records)
		p.SuccessfulCount = successful
		p.FailedCount = len(failed)
		p.HasFailedAddresses = len(failed) > 0
	})
	logger.Info("geocoding completed",
		zap.Int("successful", successful),
		zap.Int("failed", len(failed)),
	)
	return nil
}

// fail records a fatal error and rolls back the dataset directory so a
// half-written dataset is never observable.
func (r *Runner) fail(jobID, datasetName string, created bool, err error, logger *zap.Logger) {
	logger.Error("geocoding job failed", zap.Error(err))
	r.registry.update(jobID, func(p *Progress) {
		p.Status = StatusError
		p.Completed = true
		p.Error = err.Error()
	})
	if created {
		if rmErr := r.store.Remove(datasetName); rmErr != nil {
			logger.Warn("failed to roll back dataset directory", zap.Error(rmErr))
		}
	}
}
