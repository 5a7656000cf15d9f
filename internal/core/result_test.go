package core

import (
	"strings"
	"testing"
)

func TestOkResult(t *testing.T) {
	r := Ok(42)

	if !r.IsOK() {
		t.Error("expected IsOK to be true")
	}
	if r.IsErr() {
		t.Error("expected IsErr to be false")
	}
	if r.Value() != 42 {
		t.Errorf("expected value 42, got %d", r.Value())
	}
	if r.Error() != nil {
		t.Errorf("expected nil error, got %v", r.Error())
	}
}

func TestErrResult(t *testing.T) {
	r := Err[int](ValidationError("content must not be empty"))

	if r.IsOK() {
		t.Error("expected IsOK to be false")
	}
	if !r.IsErr() {
		t.Error("expected IsErr to be true")
	}
	if r.Value() != 0 {
		t.Errorf("expected zero value, got %d", r.Value())
	}
	if r.Error() == nil {
		t.Fatal("expected non-nil error")
	}
	if r.Error().Kind != KindValidation {
		t.Errorf("expected VALIDATION kind, got %s", r.Error().Kind)
	}
}

func TestErrPanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for Err(nil)")
		}
	}()
	Err[int](nil)
}

func TestUnwrapOr(t *testing.T) {
	if got := Ok("hello").UnwrapOr("fallback"); got != "hello" {
		t.Errorf("expected hello, got %s", got)
	}
	if got := Err[string](NotFoundError("missing")).UnwrapOr("fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
}

func TestMustValuePanicsOnErr(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for MustValue on failed result")
		}
	}()
	Err[int](UnexpectedError("boom")).MustValue()
}

func TestMap(t *testing.T) {
	doubled := Map(Ok(21), func(v int) int { return v * 2 })
	if !doubled.IsOK() || doubled.Value() != 42 {
		t.Errorf("expected Ok(42), got %+v", doubled)
	}

	failed := Map(Err[int](ValidationError("bad")), func(v int) int { return v * 2 })
	if !failed.IsErr() {
		t.Error("expected failure to pass through")
	}
	if failed.Error().Kind != KindValidation {
		t.Errorf("expected VALIDATION kind, got %s", failed.Error().Kind)
	}
}

func TestFlatMap(t *testing.T) {
	chained := FlatMap(Ok(2), func(v int) Result[string] {
		return Ok(strings.Repeat("a", v))
	})
	if !chained.IsOK() || chained.Value() != "aa" {
		t.Errorf("expected Ok(aa), got %+v", chained)
	}

	shortCircuit := FlatMap(Err[int](NotFoundError("missing")), func(v int) Result[string] {
		t.Error("function should not run on failed result")
		return Ok("unreachable")
	})
	if !shortCircuit.IsErr() || shortCircuit.Error().Kind != KindNotFound {
		t.Errorf("expected NOT_FOUND pass-through, got %+v", shortCircuit)
	}
}

func TestErrorKindString(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want string
	}{
		{KindValidation, "VALIDATION"},
		{KindNotFound, "NOT_FOUND"},
		{KindConcurrencyConflict, "CONCURRENCY_CONFLICT"},
		{KindUnexpected, "UNEXPECTED"},
		{ErrorKind(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("kind %d: expected %s, got %s", tc.kind, tc.want, got)
		}
	}
}

func TestUseCaseErrorMessage(t *testing.T) {
	err := ConcurrencyError("version %d is stale", 3)
	if err.Error() != "[CONCURRENCY_CONFLICT] version 3 is stale" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
