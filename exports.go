package blitz

import (
	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/dom"
	"github.com/mysangle/blitz/internal/eventloop"
	"github.com/mysangle/blitz/internal/extension"
	"github.com/mysangle/blitz/internal/host"
	"github.com/mysangle/blitz/internal/script"
)

// Type aliases re-exporting internal types so downstream code can use
// blitz.Config, blitz.Loop, etc. without importing the internal packages.

type Config = core.Config
type HostHandler = core.HostHandler
type JSRuntime = core.JSRuntime
type Reporter = core.Reporter
type ReporterFunc = core.ReporterFunc
type ScriptError = core.ScriptError
type InvariantError = core.InvariantError
type Loop = eventloop.Loop
type MacroTask = host.MacroTask
type TimeoutID = host.TimeoutID
type FireTimer = host.FireTimer
type CancelTimer = host.CancelTimer
type DispatchEvent = extension.DispatchEvent
type Document = dom.Document

// Constants re-exported from core.
const DefaultBackend = core.DefaultBackend
const DefaultQueueSize = core.DefaultQueueSize

// Errors re-exported from core.
var (
	ErrClosed           = core.ErrClosed
	ErrExecutionTimeout = core.ErrExecutionTimeout
)

// Functions re-exported from the internal packages.
var Backends = core.Backends
var NewLogger = core.NewLogger
var NewDocument = dom.Empty
var ParseDocument = dom.ParseString
var LoadScript = script.Load
