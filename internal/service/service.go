package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kplau1128/tools-n-utilies/internal/extract"
	"github.com/kplau1128/tools-n-utilies/internal/log"
	"github.com/kplau1128/tools-n-utilies/internal/model"
	"github.com/kplau1128/tools-n-utilies/internal/report"
	"github.com/kplau1128/tools-n-utilies/internal/runner"
)

// Batch is a component, which encapsulates one full run: every script with
// every argument combination, strictly sequentially. Scripts may share files
// or ports, so no two combinations ever run at the same time.
type Batch struct {
	scripts  *model.ScriptSet
	patterns *model.PatternSet
	timeout  time.Duration
}

// NewBatch validates the loaded configuration pair and builds a Batch.
// timeout, when positive, bounds every single script run.
func NewBatch(scripts *model.ScriptSet, patterns *model.PatternSet, timeout time.Duration) (Batch, error) {
	if scripts == nil || len(scripts.Scripts) == 0 {
		return Batch{}, errors.New("no scripts to run")
	}
	if patterns == nil {
		return Batch{}, errors.New("no pattern set")
	}
	return Batch{
		scripts:  scripts,
		patterns: patterns,
		timeout:  timeout,
	}, nil
}

// Do executes the whole batch and returns the accumulated report. Launch
// failures are absorbed into rows; the only error Do itself returns is a
// canceled context, and the rows finished up to that point are kept.
func (b Batch) Do(ctx context.Context) (*report.Builder, error) {
	builder := report.NewBuilder(b.patterns.FieldNames())

	for _, script := range b.scripts.Scripts {
		logCtx := log.ContextAttrs(ctx, slog.String("script", script.ID))
		slog.InfoContext(logCtx, "running script",
			"command", script.Command,
			"combinations", len(script.Combinations),
		)
		for _, combination := range script.Combinations {
			if err := ctx.Err(); err != nil {
				return builder, err
			}
			record := runner.Run(logCtx, script, combination, b.timeout)
			fields := extract.Extract(record.Output, b.patterns)
			builder.Add(record, fields)
		}
	}

	return builder, nil
}

// Rows returns the number of rows a complete run will produce.
func (b Batch) Rows() int {
	return b.scripts.TotalCombinations()
}
