package blitz

import (
	_ "github.com/mysangle/blitz/internal/gojaengine"
	_ "github.com/mysangle/blitz/internal/quickjs"
)
