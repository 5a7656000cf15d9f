package instruction

import (
	"context"
	"testing"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/persistence/memory"
)

func create(t *testing.T, h *Handlers, cmd CreateInstructionCommand) string {
	t.Helper()
	res := h.CreateInstruction(context.Background(), cmd)
	if !res.IsOK() {
		t.Fatalf("CreateInstruction failed: %v", res.Error())
	}
	return res.Value().ID
}

func TestCreateInstruction(t *testing.T) {
	store := memory.NewStore()
	h := NewHandlers(memory.NewUnitOfWork(store))

	id := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "be helpful"})

	si, ok := store.Instruction(id)
	if !ok {
		t.Fatal("expected instruction persisted")
	}
	if si.Active {
		t.Error("expected new instruction inactive by default")
	}
	if si.Provider != "gemini" || si.Instruction != "be helpful" {
		t.Errorf("unexpected instruction %+v", si)
	}
}

func TestCreateInstructionValidation(t *testing.T) {
	h := NewHandlers(memory.NewUnitOfWork(memory.NewStore()))

	cases := []CreateInstructionCommand{
		{Provider: "skynet", Instruction: "take over"},
		{Provider: "gemini", Instruction: "   "},
		{Provider: "", Instruction: "text"},
	}
	for _, cmd := range cases {
		res := h.CreateInstruction(context.Background(), cmd)
		if !res.IsErr() || res.Error().Kind != core.KindValidation {
			t.Errorf("expected VALIDATION for %+v, got %+v", cmd, res)
		}
	}
}

func TestCreateInstructionProviderNormalized(t *testing.T) {
	store := memory.NewStore()
	h := NewHandlers(memory.NewUnitOfWork(store))

	id := create(t, h, CreateInstructionCommand{Provider: " Gemini ", Instruction: "x"})
	si, _ := store.Instruction(id)
	if si.Provider != "gemini" {
		t.Errorf("expected normalized provider, got %q", si.Provider)
	}
}

func TestCreateWithActivateDeactivatesCurrent(t *testing.T) {
	store := memory.NewStore()
	h := NewHandlers(memory.NewUnitOfWork(store))

	first := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "v1", Activate: true})
	second := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "v2", Activate: true})

	si1, _ := store.Instruction(first)
	si2, _ := store.Instruction(second)
	if si1.Active {
		t.Error("expected first instruction deactivated")
	}
	if !si2.Active {
		t.Error("expected second instruction active")
	}
	if si1.Version != 2 {
		t.Errorf("expected deactivation to bump version to 2, got %d", si1.Version)
	}
}

func TestActivateInstructionSwapsActive(t *testing.T) {
	store := memory.NewStore()
	h := NewHandlers(memory.NewUnitOfWork(store))

	first := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "v1", Activate: true})
	second := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "v2"})

	res := h.ActivateInstruction(context.Background(), ActivateInstructionCommand{ID: second})
	if !res.IsOK() {
		t.Fatalf("ActivateInstruction failed: %v", res.Error())
	}

	si1, _ := store.Instruction(first)
	si2, _ := store.Instruction(second)
	if si1.Active || !si2.Active {
		t.Errorf("expected active flag to move: first=%v second=%v", si1.Active, si2.Active)
	}
}

func TestActivateInstructionIdempotent(t *testing.T) {
	store := memory.NewStore()
	h := NewHandlers(memory.NewUnitOfWork(store))

	id := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "v1", Activate: true})
	before, _ := store.Instruction(id)

	res := h.ActivateInstruction(context.Background(), ActivateInstructionCommand{ID: id})
	if !res.IsOK() {
		t.Fatalf("ActivateInstruction failed: %v", res.Error())
	}

	after, _ := store.Instruction(id)
	if !after.Active {
		t.Error("expected instruction to stay active")
	}
	if after.Version != before.Version {
		t.Errorf("expected no version bump for a no-op activation, got %d -> %d",
			before.Version, after.Version)
	}
}

func TestActivateInstructionNotFound(t *testing.T) {
	h := NewHandlers(memory.NewUnitOfWork(memory.NewStore()))

	res := h.ActivateInstruction(context.Background(), ActivateInstructionCommand{ID: "missing"})
	if !res.IsErr() || res.Error().Kind != core.KindNotFound {
		t.Errorf("expected NOT_FOUND, got %+v", res)
	}
}

func TestConcurrentActivationConflicts(t *testing.T) {
	store := memory.NewStore()
	uow := memory.NewUnitOfWork(store)
	h := NewHandlers(uow)

	active := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "current", Activate: true})
	challengerA := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "a"})
	challengerB := create(t, h, CreateInstructionCommand{Provider: "gemini", Instruction: "b"})

	// While A's activation is mid-commit, B's activation lands first.
	uow.BeforeCommit = func() {
		uow.BeforeCommit = nil
		res := h.ActivateInstruction(context.Background(), ActivateInstructionCommand{ID: challengerB})
		if !res.IsOK() {
			t.Fatalf("competing activation failed: %v", res.Error())
		}
	}

	res := h.ActivateInstruction(context.Background(), ActivateInstructionCommand{ID: challengerA})
	if !res.IsErr() || res.Error().Kind != core.KindConcurrencyConflict {
		t.Fatalf("expected CONCURRENCY_CONFLICT, got %+v", res)
	}

	// Exactly one instruction is active.
	activeCount := 0
	for _, id := range []string{active, challengerA, challengerB} {
		if si, _ := store.Instruction(id); si.Active {
			activeCount++
			if id != challengerB {
				t.Errorf("expected %s active, found %s", challengerB, id)
			}
		}
	}
	if activeCount != 1 {
		t.Errorf("expected exactly one active instruction, got %d", activeCount)
	}
}
