package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/maestro/id"
)

func TestNewCarriesPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		make func() id.ID
		want id.Prefix
	}{
		{id.NewWorkflowID, id.PrefixWorkflow},
		{id.NewExecutionID, id.PrefixExecution},
		{id.NewCheckpointID, id.PrefixCheckpoint},
	}
	for _, tt := range tests {
		got := tt.make()
		if got.Prefix() != tt.want {
			t.Errorf("Prefix() = %q, want %q", got.Prefix(), tt.want)
		}
		if !strings.HasPrefix(got.String(), string(tt.want)+"_") {
			t.Errorf("String() = %q, want %q prefix", got.String(), tt.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	orig := id.NewExecutionID()
	parsed, err := id.Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Errorf("round trip = %q, want %q", parsed.String(), orig.String())
	}

	if _, err := id.Parse(""); err == nil {
		t.Error("Parse(\"\") succeeded")
	}
	if _, err := id.Parse("not a typeid"); err == nil {
		t.Error("Parse of garbage succeeded")
	}
}

func TestParseWithPrefixRejectsMismatch(t *testing.T) {
	t.Parallel()

	execID := id.NewExecutionID()
	if _, err := id.ParseExecutionID(execID.String()); err != nil {
		t.Errorf("ParseExecutionID: %v", err)
	}
	if _, err := id.ParseCheckpointID(execID.String()); err == nil {
		t.Error("ParseCheckpointID accepted an execution id")
	}
}

func TestNilID(t *testing.T) {
	t.Parallel()

	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}
	v, err := id.Nil.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != nil {
		t.Errorf("Nil.Value() = %v, want nil", v)
	}
}

func TestTextMarshalling(t *testing.T) {
	t.Parallel()

	orig := id.NewCheckpointID()
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded.String() != orig.String() {
		t.Errorf("decoded = %q, want %q", decoded.String(), orig.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil): %v", err)
	}
	if !empty.IsNil() {
		t.Error("UnmarshalText(nil) produced a non-nil id")
	}
}

func TestSQLScan(t *testing.T) {
	t.Parallel()

	orig := id.NewExecutionID()

	var fromString id.ID
	if err := fromString.Scan(orig.String()); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if fromString.String() != orig.String() {
		t.Errorf("Scan(string) = %q, want %q", fromString.String(), orig.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(orig.String())); err != nil {
		t.Fatalf("Scan([]byte): %v", err)
	}
	if fromBytes.String() != orig.String() {
		t.Errorf("Scan([]byte) = %q, want %q", fromBytes.String(), orig.String())
	}

	var fromNull id.ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNull.IsNil() {
		t.Error("Scan(nil) produced a non-nil id")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("Scan(int) succeeded")
	}
}
