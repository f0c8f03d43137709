package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpliesAtom(t *testing.T) {
	granted := map[Atom]bool{Read: true}
	assert.True(t, Implies(granted, Of(Read)))
	assert.False(t, Implies(granted, Of(Update)))
}

func TestImpliesUnionRequiresAny(t *testing.T) {
	granted := map[Atom]bool{Update: true}
	want := Union(Of(Read), Of(Update))
	assert.True(t, Implies(granted, want))

	granted = map[Atom]bool{}
	assert.False(t, Implies(granted, want))
}

func TestImpliesIntersectionRequiresAll(t *testing.T) {
	granted := map[Atom]bool{Read: true, Update: true}
	want := Intersection(Of(Read), Of(Update))
	assert.True(t, Implies(granted, want))

	granted = map[Atom]bool{Read: true}
	assert.False(t, Implies(granted, want))
}

func TestImpliesNestedComposite(t *testing.T) {
	granted := map[Atom]bool{Read: true, Admin: true}
	want := Union(
		Intersection(Of(Read), Of(Update)),
		Of(Admin),
	)
	assert.True(t, Implies(granted, want))
}

func TestSetMergeCommutativeAndExcludeDominates(t *testing.T) {
	a := NewSet()
	a.Include[Read] = true
	b := NewSet()
	b.Exclude[Read] = true

	merged1 := NewSet()
	merged1.Merge(a)
	merged1.Merge(b)

	merged2 := NewSet()
	merged2.Merge(b)
	merged2.Merge(a)

	assert.Equal(t, merged1.NetInclude(), merged2.NetInclude())
	assert.False(t, merged1.NetInclude()[Read])
}
