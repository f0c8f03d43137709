package execctx

import (
	"sync/atomic"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/mmcdole/artisec/pkg/permission"
)

// AccessController is the narrow, consumed shape of the authorization
// engine's per-user access controller. ExecutionContext depends only on
// this interface, never on package authorization, so the authorization
// package can depend on execctx without creating an import cycle: the
// concrete implementation lives in authorization and is wired in by the
// caller that builds the ExecutionContext.
type AccessController interface {
	CheckPermission(ec *ExecutionContext, p permission.Permission) error
}

// ExecutionContext carries the state a single logical request runs under:
// who is making the call, what locale/timezone/currency it is running in,
// the artifacts it has entered so far, and the access controller that
// mediates permission checks along that path.
//
// Per the call-path design, nothing here is inherited implicitly by
// goroutines a request spawns; a caller that fans out must hand an
// ExecutionContext to each goroutine explicitly.
type ExecutionContext struct {
	UserLoginID string
	Locale      language.Tag
	TimeZone    *time.Location
	CurrencyUom currency.Unit
	Properties  map[string]any

	stack      *ArtifactStack
	controller AccessController

	// unprotectedDepth counts nested runUnprotected/endRunUnprotected
	// pairs. Zero means authorization checks are enforced normally.
	unprotectedDepth int32
}

// New constructs an ExecutionContext for the given user, with an empty
// artifact stack and UTC/en-US defaults.
func New(userLoginID string, controller AccessController) *ExecutionContext {
	return &ExecutionContext{
		UserLoginID: userLoginID,
		Locale:      language.AmericanEnglish,
		TimeZone:    time.UTC,
		CurrencyUom: currency.USD,
		Properties:  make(map[string]any),
		stack:       NewArtifactStack(),
		controller:  controller,
	}
}

// InitializeContext seeds locale/timezone/currency/property fields from a
// map of well-known keys, the way a request-scoped initializer reads them
// off an inbound request before the first artifact is entered.
func (ec *ExecutionContext) InitializeContext(params map[string]any) {
	if v, ok := params["locale"].(string); ok {
		if tag, err := language.Parse(v); err == nil {
			ec.Locale = tag
		}
	}
	if v, ok := params["timeZone"].(string); ok {
		if loc, err := time.LoadLocation(v); err == nil {
			ec.TimeZone = loc
		}
	}
	if v, ok := params["currencyUom"].(string); ok {
		if unit, err := currency.ParseISO(v); err == nil {
			ec.CurrencyUom = unit
		}
	}
	for k, v := range params {
		switch k {
		case "locale", "timeZone", "currencyUom":
			continue
		default:
			ec.Properties[k] = v
		}
	}
}

// Reset clears user-associated and property state while preserving the
// access controller wiring and artifact stack, for reuse of an
// ExecutionContext across requests from a pooled worker.
func (ec *ExecutionContext) Reset() {
	ec.UserLoginID = ""
	ec.Locale = language.AmericanEnglish
	ec.TimeZone = time.UTC
	ec.CurrencyUom = currency.USD
	ec.Properties = make(map[string]any)
	atomic.StoreInt32(&ec.unprotectedDepth, 0)
}

// Stack returns the artifact call-path stack for this context.
func (ec *ExecutionContext) Stack() *ArtifactStack {
	return ec.stack
}

// SetAccessController wires (or rewires) the access controller this
// context checks permissions against.
func (ec *ExecutionContext) SetAccessController(ac AccessController) {
	ec.controller = ac
}

// CheckPermission delegates to the wired AccessController, or denies if
// none has been wired, since an unwired context cannot be making an
// authorization decision safely.
func (ec *ExecutionContext) CheckPermission(p permission.Permission) error {
	if ec.controller == nil {
		return permission.ErrNoAccessController
	}
	return ec.controller.CheckPermission(ec, p)
}

// RunUnprotected suspends authorization enforcement for the current
// context. Suspensions nest: enforcement resumes only once every
// RunUnprotected has a matching EndRunUnprotected.
func (ec *ExecutionContext) RunUnprotected() {
	atomic.AddInt32(&ec.unprotectedDepth, 1)
}

// EndRunUnprotected ends one level of suspension. Calling it more times
// than RunUnprotected was called is a no-op; the depth never goes
// negative.
func (ec *ExecutionContext) EndRunUnprotected() {
	for {
		cur := atomic.LoadInt32(&ec.unprotectedDepth)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&ec.unprotectedDepth, cur, cur-1) {
			return
		}
	}
}

// IsUnprotected reports whether authorization enforcement is currently
// suspended for this context.
func (ec *ExecutionContext) IsUnprotected() bool {
	return atomic.LoadInt32(&ec.unprotectedDepth) > 0
}
