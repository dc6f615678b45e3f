package module

import "github.com/rotisserie/eris"

var (
	ErrUnresolvedDependency = eris.New("unresolved module dependency")
	ErrVersionMismatch      = eris.New("module dependency version mismatch")
	ErrCyclicDependency     = eris.New("cyclic module dependency")
	ErrDuplicateModule      = eris.New("duplicate module")
	ErrUnknownModule        = eris.New("unknown module")
	ErrInvalidManifest      = eris.New("invalid module manifest")
	ErrNoLoader             = eris.New("no loader for module entry")
	ErrRegistrarInvalid     = eris.New("registrar used after its module was unloaded")
)
