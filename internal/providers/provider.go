package providers

import (
	"context"

	"github.com/cockroachdb/errors"

	"ghanaoil/internal/model"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrMalformedSchema   = errors.New("malformed schema")
)

// Source yields one series per call. Implementations are expected to return
// points sorted ascending by time.
type Source interface {
	Name() string
	FetchSeries(ctx context.Context) (model.Series, error)
}

// Unavailable wraps err with the source name and marks it as ErrSourceUnavailable.
func Unavailable(source string, err error) error {
	return errors.Mark(errors.Wrapf(err, "%s", source), ErrSourceUnavailable)
}

// Malformed builds an ErrMalformedSchema error for source.
func Malformed(source, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(errors.Newf(format, args...), "%s", source), ErrMalformedSchema)
}
