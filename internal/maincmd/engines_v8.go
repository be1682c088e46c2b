//go:build v8

package maincmd

import _ "github.com/mysangle/blitz/internal/v8engine"
