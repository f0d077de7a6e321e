package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const progressPublishTimeout = 5 * time.Second

// progressReporter forwards scan progress to the broker from its own
// goroutine. Report never blocks: ticks arriving while one is in flight are
// dropped.
type progressReporter struct {
	jobID uuid.UUID
	every float64
	last  float64
	sent  bool
	ch    chan entity.ScanProgressMessage
	done  chan struct{}
}

func newProgressReporter(ctx context.Context, jobID uuid.UUID, pub port.ProgressPublisher, every float64, log *zap.Logger) *progressReporter {
	p := &progressReporter{
		jobID: jobID,
		every: every,
		ch:    make(chan entity.ScanProgressMessage, 1),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		for msg := range p.ch {
			data, _ := json.Marshal(msg)
			pubCtx, cancel := context.WithTimeout(ctx, progressPublishTimeout)
			if err := pub.PublishProgress(pubCtx, data); err != nil {
				log.Debug("failed to publish progress", zap.Error(err))
			}
			cancel()
		}
	}()
	return p
}

func (p *progressReporter) Report(fraction float64, status string) {
	if p.sent && fraction-p.last < p.every {
		return
	}
	msg := entity.ScanProgressMessage{JobID: p.jobID, Progress: fraction, Message: status}
	select {
	case p.ch <- msg:
		p.sent = true
		p.last = fraction
	default:
	}
}

// Close waits for queued ticks to be published. Report must not be called afterwards.
func (p *progressReporter) Close() {
	close(p.ch)
	<-p.done
}
