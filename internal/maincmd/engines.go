package maincmd

// The engines linked into the binary. v8 needs the v8 build tag.
import (
	_ "github.com/mysangle/blitz/internal/gojaengine"
	_ "github.com/mysangle/blitz/internal/quickjs"
)
