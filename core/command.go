package core

import (
	"errors"
	"sync"
)

// CommandHandler handles one command. It decodes its own arguments from
// data and must leave data positioned after them.
type CommandHandler func(data *[]byte) error

// Command is one registry entry. Responses have a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "oid=%c delta=%i"
	Handler CommandHandler
}

// ErrUnknownCommand is returned by Dispatch for an unregistered ID.
var ErrUnknownCommand = errors.New("unknown command")

// CommandRegistry maps command IDs to handlers. IDs are assigned in
// registration order, so two registries built by the same sequence of
// Register calls agree on every ID.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	nextID     uint16
	dictionary string
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command and returns its ID. Registering a name twice
// returns the existing ID and keeps the first handler.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id

	r.rebuildDictionary()
	return id
}

// RegisterResponse registers a device to host message.
func (r *CommandRegistry) RegisterResponse(name string, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Lookup returns the ID registered for name.
func (r *CommandRegistry) Lookup(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return &CommandError{ID: cmdID, Err: ErrUnknownCommand}
	}
	return cmd.Handler(data)
}

// GetDictionary returns one "name format" line per command, in ID order.
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// must be called with lock held
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}
		if cmd.Format != "" {
			dict += cmd.Name + " " + cmd.Format + "\n"
		} else {
			dict += cmd.Name + "\n"
		}
	}
	r.dictionary = dict
}

// CommandError ties a dispatch failure to the command ID.
type CommandError struct {
	ID  uint16
	Err error
}

func (e *CommandError) Error() string {
	return "command " + utoa(uint32(e.ID)) + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }
