package securitytag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/artisec/pkg/authorization"
	"github.com/mmcdole/artisec/pkg/cache"
	"github.com/mmcdole/artisec/pkg/execctx"
	"github.com/mmcdole/artisec/pkg/permission"
)

type stubDelegator struct {
	grants []authorization.Grant
}

func (d *stubDelegator) GroupsForUser(context.Context, string) ([]string, error)  { return nil, nil }
func (d *stubDelegator) ParentGroups(context.Context, string) ([]string, error)   { return nil, nil }
func (d *stubDelegator) UserGrants(context.Context, string) ([]authorization.Grant, error) {
	return d.grants, nil
}
func (d *stubDelegator) GroupGrants(context.Context, string) ([]authorization.Grant, error) {
	return nil, nil
}
func (d *stubDelegator) AuditedArtifacts(context.Context) ([]authorization.AuditedArtifact, error) {
	return nil, nil
}
func (d *stubDelegator) WriteAuditLog(context.Context, authorization.SecurityAuditLog) error {
	return nil
}

func newManager(grants []authorization.Grant) *authorization.Manager {
	controllers := cache.New[string, *authorization.AccessController]("accessControllers", cache.Config{}, nil, nil, nil)
	return authorization.NewManager(&stubDelegator{grants: grants}, nil, controllers)
}

func TestEnforceRendersBodyWhenGranted(t *testing.T) {
	mgr := newManager([]authorization.Grant{{Path: "/Screen", Line: "VIEW=true"}})
	ec := execctx.New("alice", nil)

	out, err := Enforce(context.Background(), ec, mgr, "Screen", execctx.ArtifactScreen, permission.Of(permission.View), func() (string, error) {
		return "rendered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rendered", out)
	assert.Equal(t, 0, ec.Stack().Len(), "Enforce must pop the artifact it pushed")
}

func TestEnforceRendersEmptyWhenDenied(t *testing.T) {
	mgr := newManager(nil)
	ec := execctx.New("bob", nil)

	bodyCalled := false
	out, err := Enforce(context.Background(), ec, mgr, "Screen", execctx.ArtifactScreen, permission.Of(permission.View), func() (string, error) {
		bodyCalled = true
		return "rendered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.False(t, bodyCalled)
	assert.Equal(t, 0, ec.Stack().Len())
}

func TestEnforcePopsArtifactEvenWhenBodyErrors(t *testing.T) {
	mgr := newManager([]authorization.Grant{{Path: "/Screen", Line: "VIEW=true"}})
	ec := execctx.New("alice", nil)

	_, err := Enforce(context.Background(), ec, mgr, "Screen", execctx.ArtifactScreen, permission.Of(permission.View), func() (string, error) {
		return "", assertErr{}
	})
	assert.Error(t, err)
	assert.Equal(t, 0, ec.Stack().Len())
}

type assertErr struct{}

func (assertErr) Error() string { return "body failed" }
