package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/BayesicGaming/MKWTTSpeedruns/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingProgress struct {
	mu       sync.Mutex
	release  chan struct{}
	messages []entity.ScanProgressMessage
}

func (b *blockingProgress) PublishProgress(_ context.Context, data []byte) error {
	<-b.release
	var msg entity.ScanProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	b.mu.Lock()
	b.messages = append(b.messages, msg)
	b.mu.Unlock()
	return nil
}

func TestProgressReporterNeverBlocks(t *testing.T) {
	pub := &blockingProgress{release: make(chan struct{})}
	jobID := uuid.New()
	p := newProgressReporter(context.Background(), jobID, pub, 0, zap.NewNop())

	// The publisher is stuck, so at most two ticks can be accepted: one in
	// flight and one buffered. The rest must be dropped without blocking.
	for i := 0; i <= 100; i++ {
		p.Report(float64(i)/100, "scanning")
	}
	close(pub.release)
	p.Close()

	require.NotEmpty(t, pub.messages)
	assert.LessOrEqual(t, len(pub.messages), 2)
	assert.Equal(t, jobID, pub.messages[0].JobID)
	assert.Equal(t, 0.0, pub.messages[0].Progress)
}

func TestProgressReporterThrottles(t *testing.T) {
	pub := &blockingProgress{release: make(chan struct{})}
	close(pub.release)
	p := newProgressReporter(context.Background(), uuid.New(), pub, 0.5, zap.NewNop())

	p.Report(0, "")
	p.Close()
	require.Len(t, pub.messages, 1)

	// A fraction closer than the threshold to the last sent one is skipped
	// before it reaches the channel.
	p2 := &progressReporter{every: 0.5, last: 0.2, sent: true, ch: make(chan entity.ScanProgressMessage, 1)}
	p2.Report(0.6, "")
	assert.Empty(t, p2.ch)
	p2.Report(0.8, "detected 1:23.456")
	require.Len(t, p2.ch, 1)
	msg := <-p2.ch
	assert.Equal(t, 0.8, msg.Progress)
	assert.Equal(t, "detected 1:23.456", msg.Message)
}
