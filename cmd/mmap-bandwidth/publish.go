package main

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/sink"
)

// publish never fails the run; a lost report is only logged.
func publish(ctx context.Context, log *zap.Logger, raw string, rep *report.Report) {
	s, err := sink.Open(ctx, raw)
	if err != nil {
		log.Error("Could not open sink", zap.String("sink", redact(raw)), zap.Error(err))

		return
	}
	defer s.Close()

	if err := s.Publish(ctx, rep); err != nil {
		log.Error("Could not publish report", zap.String("sink", redact(raw)), zap.Error(err))

		return
	}

	log.Info("Published report", zap.String("sink", redact(raw)))
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	return u.Redacted()
}
