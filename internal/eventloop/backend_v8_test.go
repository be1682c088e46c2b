//go:build v8

package eventloop

import _ "github.com/mysangle/blitz/internal/v8engine"
