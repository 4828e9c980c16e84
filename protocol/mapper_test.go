package protocol

import (
	"errors"
	"testing"
)

func TestMapMethodToCommand(t *testing.T) {
	RegisterMethodCommand(NewMethod("MapperTest", "Fetch"), CmdRequestFile)

	cmd, err := MapMethodToCommand(" MapperTest.Fetch ")
	if err != nil {
		t.Fatalf("MapMethodToCommand error: %v", err)
	}
	if cmd != CmdRequestFile {
		t.Fatalf("cmd=%s, want %s", cmd, CmdRequestFile)
	}

	m, ok := MethodForCommand(CmdRequestFile)
	if !ok || m != "MapperTest.Fetch" {
		t.Fatalf("MethodForCommand=%q ok=%v", m, ok)
	}
}

func TestMapMethodToCommandUnknown(t *testing.T) {
	for _, name := range []string{"Nope.Missing", "no-dot", ".Method", "Service."} {
		if _, err := MapMethodToCommand(name); !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("%q: expected ErrUnknownCommand, got %v", name, err)
		}
	}
}

func TestRegisterConflictingCommandPanics(t *testing.T) {
	RegisterFullMethodCommand("MapperTest.Stat", CmdRequestMetadata)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when rebinding a command")
		}
	}()
	RegisterFullMethodCommand("Other.Stat", CmdRequestMetadata)
}
