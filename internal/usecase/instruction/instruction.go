// Package instruction implements system instruction management. At
// most one instruction is active per provider; activation swaps the
// active flag with version-checked updates, so two concurrent
// activations cannot both win.
package instruction

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/domain"
	"go.botmind.dev/internal/persistence"
)

// CreateInstructionCommand stores a new system instruction.
type CreateInstructionCommand struct {
	Provider    string
	Instruction string

	// Activate makes the new instruction active immediately,
	// deactivating the provider's current one.
	Activate bool
}

// CreateInstructionResult carries the new instruction's ID.
type CreateInstructionResult struct {
	ID string
}

// ActivateInstructionCommand makes an existing instruction the active
// one for its provider.
type ActivateInstructionCommand struct {
	ID string
}

// Handlers bundles the instruction use case handlers.
type Handlers struct {
	uow persistence.UnitOfWork
}

// NewHandlers creates the instruction handlers.
func NewHandlers(uow persistence.UnitOfWork) *Handlers {
	return &Handlers{uow: uow}
}

// Register binds the handlers on the mediator builder.
func (h *Handlers) Register(b *core.MediatorBuilder) {
	core.Register(b, h.CreateInstruction)
	core.Register(b, h.ActivateInstruction)
}

// validProviders guards against typos in configuration and commands.
var validProviders = map[string]bool{
	"gemini": true,
	"fake":   true,
}

// CreateInstruction validates and stores a new instruction.
func (h *Handlers) CreateInstruction(ctx context.Context, cmd CreateInstructionCommand) core.Result[CreateInstructionResult] {
	provider := strings.ToLower(strings.TrimSpace(cmd.Provider))
	if !validProviders[provider] {
		return core.Err[CreateInstructionResult](core.ValidationError("unknown provider %q", cmd.Provider))
	}
	if strings.TrimSpace(cmd.Instruction) == "" {
		return core.Err[CreateInstructionResult](core.ValidationError("instruction text is empty"))
	}

	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[CreateInstructionResult](uerr)
	}
	defer scope.Close(ctx)

	repo := scope.Instructions()

	si := domain.NewSystemInstruction(provider, cmd.Instruction)
	if cmd.Activate {
		if uerr := deactivateCurrent(ctx, repo, provider, ""); uerr != nil {
			return core.Err[CreateInstructionResult](uerr)
		}
		si.Activate(time.Now().UTC())
	}

	if err := repo.Add(ctx, si); err != nil {
		return core.Err[CreateInstructionResult](persistence.MapError(err))
	}
	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[CreateInstructionResult](res.Error())
	}
	return core.Ok(CreateInstructionResult{ID: si.ID})
}

// ActivateInstruction swaps which instruction is active for the target
// instruction's provider. A concurrent activation of another
// instruction surfaces as CONCURRENCY_CONFLICT through the version
// checks.
func (h *Handlers) ActivateInstruction(ctx context.Context, cmd ActivateInstructionCommand) core.Result[core.Unit] {
	if cmd.ID == "" {
		return core.Err[core.Unit](core.ValidationError("instruction id is required"))
	}

	scope, uerr := h.uow.Begin(ctx)
	if uerr != nil {
		return core.Err[core.Unit](uerr)
	}
	defer scope.Close(ctx)

	repo := scope.Instructions()

	target, err := repo.Get(ctx, cmd.ID)
	if err != nil {
		return core.Err[core.Unit](persistence.MapError(err))
	}

	if uerr := deactivateCurrent(ctx, repo, target.Provider, target.ID); uerr != nil {
		return core.Err[core.Unit](uerr)
	}

	if !target.Active {
		target.Activate(time.Now().UTC())
		if err := repo.Update(ctx, target); err != nil {
			return core.Err[core.Unit](persistence.MapError(err))
		}
	}

	if res := scope.Commit(ctx); res.IsErr() {
		return core.Err[core.Unit](res.Error())
	}
	return core.Ok(core.Unit{})
}

// deactivateCurrent deactivates the provider's active instruction,
// unless it is the one identified by keepID.
func deactivateCurrent(ctx context.Context, repo persistence.InstructionRepository, provider, keepID string) *core.UseCaseError {
	current, err := repo.FindActiveByProvider(ctx, provider)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return persistence.MapError(err)
	}
	if current.ID == keepID {
		return nil
	}
	current.Deactivate(time.Now().UTC())
	if err := repo.Update(ctx, current); err != nil {
		return persistence.MapError(err)
	}
	return nil
}
