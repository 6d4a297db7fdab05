package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVisitor struct {
	scalars    int
	composites int
}

func (v *countingVisitor) VisitScalar(p *Pattern) error    { v.scalars++; return nil }
func (v *countingVisitor) VisitComposite(p *Pattern) error { v.composites++; return nil }

func TestWalkVisitsEveryNode(t *testing.T) {
	tree := &Pattern{
		Kind: KindStruct,
		Name: "root",
		Children: []*Pattern{
			{Kind: KindUnsigned, Name: "a"},
			{
				Kind: KindStaticArray,
				Name: "b",
				Children: []*Pattern{
					{Kind: KindSigned, Name: "b[0]"},
					{Kind: KindSigned, Name: "b[1]"},
				},
			},
		},
	}

	v := &countingVisitor{}
	require.NoError(t, Walk(tree, v))
	assert.Equal(t, 3, v.scalars)
	assert.Equal(t, 2, v.composites)
}

func TestWalkFollowsPointee(t *testing.T) {
	tree := &Pattern{
		Kind:             KindPointer,
		Name:             "ptr",
		PointedAtAddress: 0x10,
		Pointee:          &Pattern{Kind: KindUnsigned, Name: "*ptr"},
	}

	v := &countingVisitor{}
	require.NoError(t, Walk(tree, v))
	assert.Equal(t, 1, v.scalars)
	assert.Equal(t, 1, v.composites)
}

func TestRebaseRecomputesPointeeOffset(t *testing.T) {
	ptr := &Pattern{
		Kind:             KindPointer,
		Name:             "ptr",
		PointerBase:      0x100,
		PointerRaw:       0x10,
		PointedAtAddress: 0x110,
		Pointee: &Pattern{
			Kind:   KindStruct,
			Offset: 0x110,
			Children: []*Pattern{
				{Kind: KindUnsigned, Offset: 0x110},
				{Kind: KindUnsigned, Offset: 0x114},
			},
		},
	}

	ptr.Rebase(0x200)

	assert.Equal(t, uint64(0x200), ptr.PointerBase)
	assert.Equal(t, uint64(0x210), ptr.PointedAtAddress)
	assert.Equal(t, uint64(0x210), ptr.Pointee.Offset)
	assert.Equal(t, uint64(0x210), ptr.Pointee.Children[0].Offset)
	assert.Equal(t, uint64(0x214), ptr.Pointee.Children[1].Offset)
}

func TestRebaseIsNoopForNonPointer(t *testing.T) {
	p := &Pattern{Kind: KindUnsigned, Offset: 0x10}
	p.Rebase(0x200)
	assert.Equal(t, uint64(0x10), p.Offset)
}

func TestKindStringAndKindArrayAlias(t *testing.T) {
	assert.Equal(t, "struct", KindStruct.String())
	assert.Equal(t, "array", KindStaticArray.String())
	assert.Equal(t, "array", KindDynamicArray.String())
}
