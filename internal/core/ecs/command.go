package ecs

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CommandKind tags a deferred structural mutation.
type CommandKind uint8

const (
	CmdCreate CommandKind = iota
	CmdAdd
	CmdRemove
	CmdDestroy
	CmdCustom
)

func (k CommandKind) String() string {
	switch k {
	case CmdCreate:
		return "Create"
	case CmdAdd:
		return "Add"
	case CmdRemove:
		return "Remove"
	case CmdDestroy:
		return "Destroy"
	case CmdCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Command is a deferred mutation record. It is stored and drained by value.
type Command struct {
	Kind    CommandKind
	Entity  EntityID
	Values  []Value
	ID      ComponentID
	Custom  string
	Payload any
}

func CreateCmd(values ...Value) Command {
	return Command{Kind: CmdCreate, Values: values}
}

// AddCmd adds v.ID to e and, when v.Data is set, initializes it.
func AddCmd(e EntityID, v Value) Command {
	return Command{Kind: CmdAdd, Entity: e, Values: []Value{v}}
}

func RemoveCmd(e EntityID, id ComponentID) Command {
	return Command{Kind: CmdRemove, Entity: e, ID: id}
}

func DestroyCmd(e EntityID) Command {
	return Command{Kind: CmdDestroy, Entity: e}
}

// CustomCmd carries a payload to the handler registered under kind.
func CustomCmd(kind string, payload any) Command {
	return Command{Kind: CmdCustom, Custom: kind, Payload: payload}
}

// CustomHandler applies a Custom command.
type CustomHandler func(w *World, payload any) error

// HandleCustom registers the handler for Custom commands of the given kind.
func (w *World) HandleCustom(kind string, fn CustomHandler) {
	w.custom[kind] = fn
}

func (w *World) RemoveCustomHandler(kind string) {
	delete(w.custom, kind)
}

// Defer applies cmd at the next flush point. Outside any query or system
// pass it is applied immediately.
func (w *World) Defer(cmd Command) error {
	if w.iterating == 0 && w.passes == 0 {
		return w.apply(cmd)
	}
	w.commands = append(w.commands, cmd)
	return nil
}

// Pending returns the number of queued commands.
func (w *World) Pending() int { return len(w.commands) }

// Flush applies queued commands in enqueue order. Failures are logged and
// the remaining commands still run.
func (w *World) Flush() {
	for len(w.commands) > 0 {
		batch := w.commands
		w.commands = make([]Command, 0, cap(batch))
		for _, cmd := range batch {
			if err := w.apply(cmd); err != nil {
				w.log.Warn("deferred command skipped",
					zap.Stringer("kind", cmd.Kind),
					zap.Stringer("entity", cmd.Entity),
					zap.Error(err),
				)
			}
		}
	}
}

func (w *World) apply(cmd Command) error {
	switch cmd.Kind {
	case CmdCreate:
		_, err := w.CreateEntity(cmd.Values...)
		return err
	case CmdAdd:
		for _, v := range cmd.Values {
			if err := w.AddComponent(cmd.Entity, v.ID); err != nil {
				return err
			}
			if v.Data != nil {
				if err := w.setValue(cmd.Entity, v.ID, v.Data); err != nil {
					return err
				}
			}
		}
		return nil
	case CmdRemove:
		return w.RemoveComponent(cmd.Entity, cmd.ID)
	case CmdDestroy:
		return w.DestroyEntity(cmd.Entity)
	case CmdCustom:
		fn, ok := w.custom[cmd.Custom]
		if !ok {
			return eris.Wrapf(ErrNoCustomHandler, "custom command %q", cmd.Custom)
		}
		return fn(w, cmd.Payload)
	default:
		return eris.Errorf("unknown command kind %d", cmd.Kind)
	}
}
