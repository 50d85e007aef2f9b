package service

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/dto"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New()
}

type auditStub struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *auditStub) Record(ctx context.Context, entry AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

type publisherStub struct {
	events []dto.ParticipationSavedEvent
}

func (p *publisherStub) Publish(ctx context.Context, event dto.ParticipationSavedEvent) {
	p.events = append(p.events, event)
}
