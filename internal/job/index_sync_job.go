package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/service"
)

type IndexSyncer interface {
	SyncPending(ctx context.Context, batch int) (service.SyncStats, error)
}

// IndexSyncJob re-embeds resumes and jobs edited since their last index.
type IndexSyncJob struct {
	syncer IndexSyncer
	batch  int
}

func NewIndexSyncJob(syncer IndexSyncer, batch int) *IndexSyncJob {
	return &IndexSyncJob{syncer: syncer, batch: batch}
}

func (j *IndexSyncJob) Name() string {
	return "index_sync"
}

func (j *IndexSyncJob) Run(ctx context.Context) error {
	if j.syncer == nil {
		return nil
	}
	batch := j.batch
	if batch <= 0 {
		batch = 50
	}
	stats, err := j.syncer.SyncPending(ctx, batch)
	if err != nil {
		return err
	}
	if stats.Indexed() > 0 || stats.Failed > 0 {
		logutil.GetLogger(ctx).Info("index sync done",
			zap.Int("resumes", stats.Resumes),
			zap.Int("jobs", stats.Jobs),
			zap.Int("failed", stats.Failed),
		)
	}
	return nil
}
