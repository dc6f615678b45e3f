package engine

import "github.com/rotisserie/eris"

var (
	ErrReentrantFrame      = eris.New("frame started while another frame is running")
	ErrDuplicateSubcontext = eris.New("subcontext already registered")
	ErrResourceExists      = eris.New("a resource of this type is already registered")
	ErrNotInitialized      = eris.New("engine not initialized")
)
