package authorization

import (
	"context"
	"sync/atomic"

	"github.com/mmcdole/artisec/pkg/execctx"
	"github.com/mmcdole/artisec/pkg/permission"
	"github.com/mmcdole/artisec/pkg/permtrie"
)

// auditSentinel is the service name loadAuditTrie tags an audited
// artifact's trie node with, letting isAuditedPath reuse
// permtrie.PathNode.Resolve instead of a second, parallel matcher.
const auditSentinel = "__security_audit__"

// AccessController mediates permission checks for a single user: the
// artifact-path trie built from that user's effective grants (group
// grants merged first, user grants merged after), plus the delegator
// and dispatcher it consults for audit logging and service-backed
// checks.
type AccessController struct {
	userLoginID string
	trie        *permtrie.PathNode
	delegator   Delegator
	dispatcher  Dispatcher
	auditTrie   *permtrie.PathNode

	// disabled points at the owning Manager's global kill switch. A nil
	// disabled (an AccessController built outside a Manager, as in
	// tests) is always treated as enabled.
	disabled *atomic.Bool
}

// UserLoginID returns the user this controller was built for.
func (ac *AccessController) UserLoginID() string {
	return ac.userLoginID
}

// CheckPermission resolves the permission set along ec's current
// artifact path and reports whether it implies p. Order of evaluation:
//
//  1. If the Manager's global kill switch is disabled (the
//     authorizationManager.disabled configuration property), the check
//     succeeds immediately without consulting grants or writing an
//     audit log entry.
//  2. If ec is running unprotected (RunUnprotected without a matching
//     EndRunUnprotected), the check is skipped entirely.
//  3. The path is resolved to a net permission set (includes minus
//     excludes, merged across every matching trie node).
//  4. If the set implies p directly, access is granted.
//  5. Otherwise, if the set names a service for this path,
//     hasServicePermission defers to the Dispatcher for a
//     programmatic decision.
//  6. Any other outcome denies access.
//
// Every outcome of steps 3-6 — granted or denied — is logged through
// logIncident if the current path is an audited artifact. The
// short-circuits of steps 1 and 2, and an error from a service check,
// return without writing an audit log entry.
//
// CheckPermission satisfies execctx.AccessController, whose signature
// predates any particular request's context.Context; it delegates to
// CheckPermissionContext with context.Background(). Callers that have a
// request context and want it honored by the Delegator/Dispatcher calls
// below should call CheckPermissionContext directly instead.
func (ac *AccessController) CheckPermission(ec *execctx.ExecutionContext, p permission.Permission) error {
	return ac.CheckPermissionContext(context.Background(), ec, p)
}

// CheckPermissionContext is CheckPermission with an explicit context,
// propagated to every Delegator/Dispatcher call this check makes.
func (ac *AccessController) CheckPermissionContext(ctx context.Context, ec *execctx.ExecutionContext, p permission.Permission) error {
	if ac.disabled != nil && ac.disabled.Load() {
		return nil
	}
	if ec.IsUnprotected() {
		return nil
	}

	path := ec.Stack().Path()
	set, err := ac.trie.Resolve(path)
	if err != nil {
		return &InvalidPermissionError{Err: err}
	}

	granted := set.NetInclude()
	allowed := permission.Implies(granted, p)
	if !allowed {
		allowed, err = ac.hasServicePermission(ctx, set)
		if err != nil {
			return err
		}
	}

	if err := ac.logIncident(ctx, path, p, allowed); err != nil {
		return err
	}

	if !allowed {
		return &AccessDeniedError{UserLoginID: ac.userLoginID, Path: path}
	}
	return nil
}

// hasServicePermission defers to the Dispatcher for every service the
// resolved permission set names at this path, granting access if any
// one of them reports the permission is satisfied.
func (ac *AccessController) hasServicePermission(ctx context.Context, set *permission.Set) (bool, error) {
	if ac.dispatcher == nil {
		return false, nil
	}
	for service := range set.Services {
		ok, err := ac.dispatcher.InvokeService(ctx, service, map[string]any{
			"userLoginID": ac.userLoginID,
		})
		if err != nil {
			return false, &DataAccessError{Op: "invoking service permission check " + service, Err: err}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (ac *AccessController) logIncident(ctx context.Context, path string, p permission.Permission, granted bool) error {
	if ac.auditTrie == nil || ac.delegator == nil {
		return nil
	}
	audited, err := ac.isAuditedPath(path)
	if err != nil {
		return &InvalidPermissionError{Err: err}
	}
	if !audited {
		return nil
	}

	entry := SecurityAuditLog{
		UserLoginID: ac.userLoginID,
		Path:        path,
		Permission:  describePermission(p),
		Granted:     granted,
	}
	if err := ac.delegator.WriteAuditLog(ctx, entry); err != nil {
		// A failed audit write must not be mistaken for a granted
		// permission: it is surfaced as a denial regardless of what the
		// permission resolution above decided.
		return &AccessDeniedError{UserLoginID: ac.userLoginID, Path: path, Reason: "audit log write failed"}
	}
	return nil
}

func (ac *AccessController) isAuditedPath(path string) (bool, error) {
	set, err := ac.auditTrie.Resolve(path)
	if err != nil {
		return false, err
	}
	return set.HasService(auditSentinel), nil
}

func describePermission(p permission.Permission) string {
	switch p.Kind {
	case permission.KindAtom:
		return string(p.Atom)
	case permission.KindUnion:
		return "union"
	case permission.KindIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// ApplyFilters runs every row of items through the named filters the
// resolved permission set at ec's current path carries, keeping only
// rows every filter accepts.
//
// This accepts only in-memory []T: applying filters to a streaming
// database cursor is deliberately not implemented. Both of the
// alternatives considered — filtering before a page is assembled
// (shrinks pages unpredictably and defeats pagination contracts) or
// after (silently produces short pages) — trade one correctness problem
// for another, so callers that need filtered paging must materialize
// the page first and call ApplyFilters on it.
func ApplyFilters[T any](ec *execctx.ExecutionContext, ac *AccessController, items []T, filterFuncs map[string]func(T) bool) ([]T, error) {
	path := ec.Stack().Path()
	set, err := ac.trie.Resolve(path)
	if err != nil {
		return nil, &InvalidPermissionError{Err: err}
	}
	if len(set.Filters) == 0 {
		return items, nil
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		keep := true
		for name := range set.Filters {
			fn, ok := filterFuncs[name]
			if !ok {
				continue
			}
			if !fn(item) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}
	return out, nil
}
