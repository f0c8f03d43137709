// Package securitytag implements the template-directive contract a
// rendering layer wraps a protected body in: push an artifact, check a
// permission, render the body only if it is granted, and always pop the
// artifact on the way out.
package securitytag

import (
	"context"

	"github.com/mmcdole/artisec/pkg/authorization"
	"github.com/mmcdole/artisec/pkg/execctx"
	"github.com/mmcdole/artisec/pkg/permission"
)

// Enforce wraps body in an artifact-stack push/pop and a permission
// check, the way a template's `<ofbizSecurity permission="..."
// artifactId="...">` tag wraps the markup inside it. If the permission
// check denies access, Enforce returns an empty string and a nil error —
// a denied security tag renders as nothing, it is not a request error —
// unless the denial comes from CheckPermissionContext itself returning
// something other than an AccessDeniedError (an InvalidPermissionError
// or DataAccessError propagates as a real error, since those indicate
// the engine is misconfigured rather than that the user lacks access).
func Enforce(
	ctx context.Context,
	ec *execctx.ExecutionContext,
	mgr *authorization.Manager,
	artifactID string,
	artifactType execctx.ArtifactType,
	p permission.Permission,
	body func() (string, error),
) (string, error) {
	ec.Stack().Push(execctx.Artifact{Name: artifactID, Type: artifactType})
	defer ec.Stack().Pop()

	ac, err := mgr.GetAccessController(ctx, ec)
	if err != nil {
		return "", err
	}

	if err := ac.CheckPermissionContext(ctx, ec, p); err != nil {
		var denied *authorization.AccessDeniedError
		if isAccessDenied(err, &denied) {
			return "", nil
		}
		return "", err
	}

	return body()
}

func isAccessDenied(err error, target **authorization.AccessDeniedError) bool {
	denied, ok := err.(*authorization.AccessDeniedError)
	if ok {
		*target = denied
	}
	return ok
}
