package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ghanaoil/internal/align"
	"ghanaoil/internal/export"
	"ghanaoil/internal/model"
	"ghanaoil/internal/store"
)

type Output struct {
	CSVPath   string
	XLSXPath  string
	IndexName string
}

// Pipeline runs fetch, align and persist in sequence. Output files are
// staged and only renamed into place once the run has been archived.
type Pipeline struct {
	aligner *align.Aligner
	store   store.Store
	output  Output
	logger  zerolog.Logger
	now     func() time.Time
}

func New(aligner *align.Aligner, st store.Store, output Output, logger zerolog.Logger) *Pipeline {
	if st == nil {
		st = &store.NopStore{}
	}
	if output.IndexName == "" {
		output.IndexName = "period"
	}
	return &Pipeline{
		aligner: aligner,
		store:   st,
		output:  output,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		now:     time.Now,
	}
}

func (p *Pipeline) Run(ctx context.Context) (model.Run, error) {
	started := p.now()
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Logger()

	series, frame, err := p.aligner.Run(ctx)
	if err != nil {
		return model.Run{}, errors.Wrap(err, "align sources")
	}

	csvFile, err := export.StageCSV(p.output.CSVPath, frame, p.output.IndexName)
	if err != nil {
		return model.Run{}, errors.Wrap(err, "write csv")
	}
	defer csvFile.Discard()

	var xlsxFile *export.Staged
	if p.output.XLSXPath != "" {
		if xlsxFile, err = export.StageXLSX(p.output.XLSXPath, frame, p.output.IndexName); err != nil {
			return model.Run{}, errors.Wrap(err, "write xlsx")
		}
		defer xlsxFile.Discard()
	}

	run := model.Run{
		ID:        runID,
		CreatedAt: started.UTC(),
		Series:    series,
		Frame:     frame,
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return model.Run{}, errors.Wrap(err, "save run")
	}

	// The CSV is renamed into place last.
	if xlsxFile != nil {
		if err := xlsxFile.Commit(); err != nil {
			return model.Run{}, errors.Wrap(err, "write xlsx")
		}
		logger.Info().Str("path", p.output.XLSXPath).Msg("wrote workbook")
	}
	if err := csvFile.Commit(); err != nil {
		return model.Run{}, errors.Wrap(err, "write csv")
	}
	logger.Info().Str("path", p.output.CSVPath).Int("rows", len(frame.Rows)).Msg("wrote quarterly table")

	logger.Info().Dur("elapsed", p.now().Sub(started)).Msg("run complete")
	return run, nil
}
