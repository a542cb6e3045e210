package core

import (
	"errors"
	"testing"

	"smoothstep/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "test_command" {
		t.Fatalf("GetCommand(%d) = %+v, %v", id, cmd, ok)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	err := registry.Dispatch(999, &data)
	var cmdErr *CommandError
	if !errors.Is(err, ErrUnknownCommand) || !errors.As(err, &cmdErr) || cmdErr.ID != 999 {
		t.Errorf("Dispatch(999) = %v", err)
	}
}

func TestCommandRegistrySequentialIDs(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("command2", "arg2=%u", func(data *[]byte) error { return nil })
	id3 := registry.RegisterResponse("command3", "arg3=%u")
	again := registry.Register("command1", "", nil)

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}
	if again != id1 || registry.Count() != 3 {
		t.Errorf("re-registering returned %d, count %d", again, registry.Count())
	}
	if id, ok := registry.Lookup("command2"); !ok || id != id2 {
		t.Errorf("Lookup(command2) = %d, %v", id, ok)
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Error("Lookup found an unregistered name")
	}

	// responses have no handler and cannot be dispatched
	var data []byte
	if err := registry.Dispatch(id3, &data); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Dispatch(response) = %v", err)
	}
}

func TestCommandRegistryDictionary(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("get_info", "", func(data *[]byte) error { return nil })
	registry.RegisterResponse("info", "version=%u")

	want := "get_info\ninfo version=%u\n"
	if got := registry.GetDictionary(); got != want {
		t.Errorf("dictionary = %q, want %q", got, want)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var received int64
	id := registry.Register("test_args", "value=%li", func(data *[]byte) error {
		val, err := protocol.DecodeVLQInt64(data)
		received = val
		return err
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQInt64(output, -1<<40)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if received != -1<<40 {
		t.Errorf("Expected value %d, got %d", int64(-1<<40), received)
	}
}
