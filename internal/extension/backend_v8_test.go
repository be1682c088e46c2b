//go:build v8

package extension

import _ "github.com/mysangle/blitz/internal/v8engine"
