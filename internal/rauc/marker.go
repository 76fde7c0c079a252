package rauc

import (
	"context"
	"errors"

	"github.com/nholik/rauc-health/internal/command"
	"github.com/rs/zerolog"
)

const raucProgram = "rauc"

// Marker marks the booted RAUC slot through the rauc CLI.
type Marker struct {
	logger zerolog.Logger
	runner command.Runner
}

// NewMarker returns a Marker that invokes rauc through runner.
func NewMarker(logger zerolog.Logger, runner command.Runner) *Marker {
	return &Marker{logger: logger, runner: runner}
}

// MarkGood marks the currently booted slot as good.
func (m *Marker) MarkGood(ctx context.Context) error {
	if err := m.check(); err != nil {
		return err
	}
	m.logger.Info().Msg("marking current RAUC slot as GOOD")
	if _, err := command.Checked(ctx, m.runner, raucProgram, "status", "mark-good"); err != nil {
		return err
	}
	m.logger.Info().Msg("marked slot as GOOD")
	return nil
}

// MarkBad marks the currently booted slot as bad so the bootloader falls
// back to the other slot.
func (m *Marker) MarkBad(ctx context.Context) error {
	if err := m.check(); err != nil {
		return err
	}
	m.logger.Warn().Msg("marking current RAUC slot as BAD")
	if _, err := command.Checked(ctx, m.runner, raucProgram, "status", "mark-bad"); err != nil {
		return err
	}
	m.logger.Warn().Msg("marked slot as BAD")
	return nil
}

func (m *Marker) check() error {
	if m == nil || m.runner == nil {
		return errors.New("rauc marker is not initialized")
	}
	return nil
}
