package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// AnalysisChannel is the pub/sub channel carrying completed-analysis events.
const AnalysisChannel = "ch:analysis"

// StoreSink persists reports to a ReportStore.
type StoreSink struct {
	store domain.ReportStore
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store domain.ReportStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "report_store" }

func (s *StoreSink) Publish(ctx context.Context, report domain.Report) error {
	if err := s.store.Save(ctx, report); err != nil {
		return fmt.Errorf("service: save report: %w", err)
	}
	return nil
}

// BusSink broadcasts a completed-analysis summary on the signal bus.
type BusSink struct {
	bus     domain.SignalBus
	channel string
}

// NewBusSink creates a BusSink publishing on AnalysisChannel.
func NewBusSink(bus domain.SignalBus) *BusSink {
	return &BusSink{bus: bus, channel: AnalysisChannel}
}

func (s *BusSink) Name() string { return "signal_bus" }

func (s *BusSink) Publish(ctx context.Context, report domain.Report) error {
	payload, err := json.Marshal(domain.CompletedEvent(report))
	if err != nil {
		return fmt.Errorf("service: encode event: %w", err)
	}
	if err := s.bus.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("service: publish %s: %w", s.channel, err)
	}
	return nil
}
