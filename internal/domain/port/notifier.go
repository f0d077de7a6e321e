package port

import "context"

// FailureNotice describes a scan that will not be retried.
type FailureNotice struct {
	UserEmail string
	JobID     string
	VideoKey  string
	Reason    string
	Attempts  int
}

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, notice FailureNotice) error
}
