package ecs

import "github.com/rotisserie/eris"

var (
	ErrInvalidComponent   = eris.New("component descriptor has no valid identifier")
	ErrUnknownComponent   = eris.New("component is not registered")
	ErrSignatureExhausted = eris.New("no free component index left in signature")
	ErrEntityNotAlive     = eris.New("entity is not alive")
	ErrComponentExists    = eris.New("component already exists on entity")
	ErrComponentNotFound  = eris.New("component does not exist on entity")
	ErrWorldLocked        = eris.New("world is locked by an iterating query")
	ErrValueType          = eris.New("value does not match component type")
	ErrNoCustomHandler    = eris.New("no handler for custom command")
)
