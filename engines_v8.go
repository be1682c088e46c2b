//go:build v8

package blitz

import _ "github.com/mysangle/blitz/internal/v8engine"
