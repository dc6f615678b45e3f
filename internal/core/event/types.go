package event

import "github.com/google/uuid"

// Module lifecycle events, emitted once per module after a load or unload
// batch is applied.

type ModuleLoaded struct {
	Name string
	GUID uuid.UUID
}

type ModuleUnloaded struct {
	Name string
	GUID uuid.UUID
}
