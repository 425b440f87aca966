package app

import (
	"context"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/internal"
	"happycast/internal/errors"
	"happycast/ports"
)

// ComparisonFile is the merged table written next to the model summaries
const ComparisonFile = "model_comparison.csv"

// ComparisonService outer-joins the result tables of two model families
type ComparisonService struct {
	reader ports.ResultTableReader
	writer ports.ResultWriter
	logger *internal.Logger
}

// ComparisonResult is the merged table and where it was written
type ComparisonResult struct {
	Table      *backtest.ResultTable `json:"table"`
	OutputPath string                `json:"output_path"`
	Skipped    bool                  `json:"skipped"`
}

// NewComparisonService creates a comparison service
func NewComparisonService(reader ports.ResultTableReader, writer ports.ResultWriter, logger *internal.Logger) *ComparisonService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ComparisonService{reader: reader, writer: writer, logger: logger}
}

// CompareWithPrevious merges a previously written table (left) with the
// current run's table (right). A missing previous file is not an error; the
// result is then marked skipped and nothing is written.
func (s *ComparisonService) CompareWithPrevious(ctx context.Context, previousPath string, current *backtest.ResultTable, outputPath string) (*ComparisonResult, error) {
	previous, err := s.reader.ReadTable(ctx, previousPath)
	if err != nil {
		if core.IsNotFoundError(err) {
			s.logger.Debug("[ComparisonService] %s not found, skipping comparison", previousPath)
			return &ComparisonResult{Skipped: true}, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", previousPath)
	}
	return s.merge(ctx, previous, current, outputPath)
}

// CompareFiles merges two written tables, left first
func (s *ComparisonService) CompareFiles(ctx context.Context, leftPath, rightPath, outputPath string) (*ComparisonResult, error) {
	left, err := s.reader.ReadTable(ctx, leftPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", leftPath)
	}
	right, err := s.reader.ReadTable(ctx, rightPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", rightPath)
	}
	return s.merge(ctx, left, right, outputPath)
}

func (s *ComparisonService) merge(ctx context.Context, left, right *backtest.ResultTable, outputPath string) (*ComparisonResult, error) {
	merged := backtest.Merge(left, right)
	if outputPath != "" {
		if err := s.writer.WriteTable(ctx, outputPath, merged); err != nil {
			return nil, errors.Wrapf(err, "failed to write %s", outputPath)
		}
		s.logger.Info("[ComparisonService] wrote %s with %d countries", outputPath, merged.Len())
	}
	return &ComparisonResult{Table: merged, OutputPath: outputPath}, nil
}
