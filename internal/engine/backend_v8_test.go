//go:build v8

package engine

import _ "github.com/mysangle/blitz/internal/v8engine"
