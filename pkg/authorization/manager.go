package authorization

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/artisec/pkg/cache"
	"github.com/mmcdole/artisec/pkg/execctx"
	"github.com/mmcdole/artisec/pkg/permtrie"
)

// Manager builds and caches per-user AccessControllers from grants read
// through a Delegator. A controller is built once per user and reused
// until the cache evicts or expires it; concurrent requests for the same
// user's controller block on a per-user lock rather than racing to build
// it twice.
type Manager struct {
	delegator  Delegator
	dispatcher Dispatcher

	controllers *cache.Cache[string, *AccessController]

	buildMu sync.Mutex
	locks   map[string]*sync.Mutex

	auditOnce sync.Once
	auditTrie *permtrie.PathNode
	auditErr  error

	// disabled is the global authorization-disabled kill switch (the
	// authorizationManager.disabled configuration property). It is
	// shared by pointer with every AccessController this Manager
	// builds, so toggling it takes effect immediately for controllers
	// already cached, without an Invalidate/InvalidateAll round trip.
	disabled atomic.Bool
}

// SetDisabled sets the global authorization-disabled kill switch. While
// disabled, every AccessController this Manager has built or will
// build grants every permission check without consulting grants.
func (m *Manager) SetDisabled(disabled bool) {
	m.disabled.Store(disabled)
}

// Disabled reports the current state of the global kill switch.
func (m *Manager) Disabled() bool {
	return m.disabled.Load()
}

// NewManager constructs an AuthorizationManager. controllers is the
// named cache controllers are memoized in; callers typically build it
// with cache.New[string, *AccessController]("accessControllers", ...).
func NewManager(delegator Delegator, dispatcher Dispatcher, controllers *cache.Cache[string, *AccessController]) *Manager {
	return &Manager{
		delegator:   delegator,
		dispatcher:  dispatcher,
		controllers: controllers,
		locks:       make(map[string]*sync.Mutex),
	}
}

// GetAccessController returns the AccessController for ec.UserLoginID,
// building and caching it on first use.
func (m *Manager) GetAccessController(ctx context.Context, ec *execctx.ExecutionContext) (*AccessController, error) {
	userID := ec.UserLoginID
	if ac, ok := m.controllers.Get(userID); ok {
		return ac, nil
	}

	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	if ac, ok := m.controllers.Get(userID); ok {
		return ac, nil
	}

	ac, err := m.build(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.controllers.Put(userID, ac)
	return ac, nil
}

// Invalidate evicts userID's cached controller, forcing the next
// GetAccessController call to rebuild it from current grants. Call this
// after a grant, group membership, or group hierarchy change for the
// user.
func (m *Manager) Invalidate(userID string) {
	m.controllers.Remove(userID)
}

// InvalidateAll evicts every cached controller, forcing every user's
// next GetAccessController call to rebuild from current grants. Call
// this after reloading the underlying grant source wholesale, since a
// bulk edit can touch grants or group membership for users other than
// the one that triggered the reload.
func (m *Manager) InvalidateAll() {
	m.controllers.Clear()
}

func (m *Manager) lockFor(userID string) *sync.Mutex {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

func (m *Manager) build(ctx context.Context, userID string) (*AccessController, error) {
	groups, err := m.groupClosure(ctx, userID)
	if err != nil {
		return nil, &DataAccessError{Op: "resolving group closure", Err: err}
	}

	root := permtrie.NewPathNode()

	// Group grants are inserted first and user grants after, but the
	// order does not change the result: PathNode.Insert merges, and
	// Set.Merge's exclude-always-dominates rule means a user-level
	// exclude overrides a group-level include, while a user-level
	// include takes effect only if no group grant excludes the same
	// atom on a matching path.
	for _, group := range groups {
		grants, err := m.delegator.GroupGrants(ctx, group)
		if err != nil {
			return nil, &DataAccessError{Op: "reading group grants", Err: err}
		}
		if err := insertGrants(root, grants); err != nil {
			return nil, err
		}
	}

	userGrants, err := m.delegator.UserGrants(ctx, userID)
	if err != nil {
		return nil, &DataAccessError{Op: "reading user grants", Err: err}
	}
	if err := insertGrants(root, userGrants); err != nil {
		return nil, err
	}

	auditTrie, err := m.loadAuditTrie(ctx)
	if err != nil {
		return nil, err
	}

	return &AccessController{
		userLoginID: userID,
		trie:        root,
		delegator:   m.delegator,
		dispatcher:  m.dispatcher,
		auditTrie:   auditTrie,
		disabled:    &m.disabled,
	}, nil
}

func insertGrants(root *permtrie.PathNode, grants []Grant) error {
	for _, g := range grants {
		if err := root.Insert(g.Path, g.Line); err != nil {
			return &InvalidPermissionError{Err: err}
		}
	}
	return nil
}

// groupClosure returns every group userID belongs to, directly or
// through a chain of group-to-parent-group membership, visited
// breadth-first and deduplicated so a diamond in the group hierarchy is
// only walked once.
func (m *Manager) groupClosure(ctx context.Context, userID string) ([]string, error) {
	direct, err := m.delegator.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var order []string
	queue := append([]string(nil), direct...)
	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]
		if seen[group] {
			continue
		}
		seen[group] = true
		order = append(order, group)

		parents, err := m.delegator.ParentGroups(ctx, group)
		if err != nil {
			return nil, err
		}
		queue = append(queue, parents...)
	}
	return order, nil
}

func (m *Manager) loadAuditTrie(ctx context.Context) (*permtrie.PathNode, error) {
	m.auditOnce.Do(func() {
		artifacts, err := m.delegator.AuditedArtifacts(ctx)
		if err != nil {
			m.auditErr = &DataAccessError{Op: "reading audited artifacts", Err: err}
			return
		}
		trie := permtrie.NewPathNode()
		for _, a := range artifacts {
			// An audited artifact carries no permission atoms of its own;
			// it only marks the path as subject to logging, via a
			// sentinel service name isAuditedPath checks for.
			_ = trie.Insert(a.Path, "service="+auditSentinel)
		}
		m.auditTrie = trie
	})
	return m.auditTrie, m.auditErr
}
