// Package jobs holds the river workers that pull gateway payments on a schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/multazero/backend/internal/gatewaysync"
)

// QueueSync is the river queue gateway pulls run on.
const QueueSync = "gateway_sync"

const (
	syncUniquePeriod = 10 * time.Minute
	syncTimeout      = 5 * time.Minute
)

type SyncCompanyArgs struct {
	CompanyID uuid.UUID `json:"company_id"`
}

func (SyncCompanyArgs) Kind() string { return "sync_company_payments" }

// InsertOpts makes jobs for the same company unique within a window so
// overlapping schedules do not pull the same company twice.
func (SyncCompanyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueSync,
		MaxAttempts: 3,
		UniqueOpts:  river.UniqueOpts{ByArgs: true, ByPeriod: syncUniquePeriod},
	}
}

type SyncAllCompaniesArgs struct{}

func (SyncAllCompaniesArgs) Kind() string { return "sync_all_companies" }

func (SyncAllCompaniesArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:      QueueSync,
		UniqueOpts: river.UniqueOpts{ByPeriod: syncUniquePeriod},
	}
}

// CompanySyncer is implemented by *gatewaysync.Synchronizer.
type CompanySyncer interface {
	SyncCompany(ctx context.Context, companyID uuid.UUID) (*gatewaysync.SyncResult, error)
}

// CompanyLister lists companies that have gateway credentials.
type CompanyLister interface {
	ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

type SyncCompanyWorker struct {
	river.WorkerDefaults[SyncCompanyArgs]
	syncer CompanySyncer
	logger *slog.Logger
}

func NewSyncCompanyWorker(s CompanySyncer, logger *slog.Logger) *SyncCompanyWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncCompanyWorker{syncer: s, logger: logger}
}

func (w *SyncCompanyWorker) Timeout(*river.Job[SyncCompanyArgs]) time.Duration { return syncTimeout }

// Work pulls one company. Missing credentials are skipped; only errors that
// stopped the pull outright are returned for river to retry.
func (w *SyncCompanyWorker) Work(ctx context.Context, job *river.Job[SyncCompanyArgs]) error {
	companyID := job.Args.CompanyID
	res, err := w.syncer.SyncCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("sync company %s: %w", companyID, err)
	}
	if res.CredentialsMissing {
		w.logger.Info("scheduled sync skipped, no gateway credentials", "company_id", companyID)
		return nil
	}
	w.logger.Info("scheduled sync finished",
		"company_id", companyID,
		"pulled", res.Pulled,
		"inserted", res.Inserted,
		"already_existed", res.AlreadyExisted,
		"failed", res.Failed,
		"warning", res.Warning)
	return nil
}

// EnqueueFunc inserts jobs in bulk.
type EnqueueFunc func(ctx context.Context, params []river.InsertManyParams) error

type SyncAllCompaniesWorker struct {
	river.WorkerDefaults[SyncAllCompaniesArgs]
	companies CompanyLister
	enqueue   EnqueueFunc
	logger    *slog.Logger
}

// NewSyncAllCompaniesWorker fans out one SyncCompanyArgs job per company using
// the river client that runs the worker.
func NewSyncAllCompaniesWorker(companies CompanyLister, logger *slog.Logger) *SyncAllCompaniesWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncAllCompaniesWorker{companies: companies, enqueue: enqueueFromContext, logger: logger}
}

func (w *SyncAllCompaniesWorker) Work(ctx context.Context, job *river.Job[SyncAllCompaniesArgs]) error {
	ids, err := w.companies.ListCompanyIDs(ctx)
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	params := make([]river.InsertManyParams, 0, len(ids))
	for _, id := range ids {
		params = append(params, river.InsertManyParams{Args: SyncCompanyArgs{CompanyID: id}})
	}
	if err := w.enqueue(ctx, params); err != nil {
		return fmt.Errorf("enqueue company syncs: %w", err)
	}
	w.logger.Info("scheduled company syncs", "companies", len(ids))
	return nil
}

func enqueueFromContext(ctx context.Context, params []river.InsertManyParams) error {
	client, err := river.ClientFromContextSafely[pgx.Tx](ctx)
	if err != nil {
		return err
	}
	_, err = client.InsertMany(ctx, params)
	return err
}

// Register adds the sync workers to workers.
func Register(workers *river.Workers, syncer CompanySyncer, companies CompanyLister, logger *slog.Logger) {
	river.AddWorker(workers, NewSyncCompanyWorker(syncer, logger))
	river.AddWorker(workers, NewSyncAllCompaniesWorker(companies, logger))
}

// PeriodicJobs schedules the fan-out every interval, starting at boot.
func PeriodicJobs(interval time.Duration) []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return SyncAllCompaniesArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}
