package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"ghanaoil/internal/model"
)

var ErrNoRuns = errors.New("store: no runs recorded")

// Store archives pipeline runs: the fetched series and the merged frame.
type Store interface {
	SaveRun(ctx context.Context, run model.Run) error
	LatestRun(ctx context.Context) (model.Run, error)
	Close() error
}

type NopStore struct{}

func (s *NopStore) SaveRun(ctx context.Context, run model.Run) error {
	_ = ctx
	_ = run
	return nil
}

func (s *NopStore) LatestRun(ctx context.Context) (model.Run, error) {
	_ = ctx
	return model.Run{}, ErrNoRuns
}

func (s *NopStore) Close() error {
	return nil
}
