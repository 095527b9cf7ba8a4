package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTrue(t *testing.T) {
	truthy := NewStringObj([]byte("x"))
	emptyNoNul := NewStringObj(nil)
	emptyWithNul := NewStringObj([]byte{0})

	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NullVal(), false},
		{"zero", NumberVal(0), false},
		{"negative zero", NumberVal(math.Copysign(0, -1)), false},
		{"nonzero number", NumberVal(1.5), true},
		{"empty string no NUL", ObjectVal(String, emptyNoNul), true},
		{"empty string with NUL", ObjectVal(String, emptyWithNul), false},
		{"non-empty string", ObjectVal(String, truthy), true},
		{"array", ObjectVal(Array, NewArrayObj()), true},
		{"func", ObjectVal(Func, NewFuncObj()), true},
		{"c_func", CFuncVal(func(interface{}, *Value, []Value) error { return nil }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsTrue(tt.v))
		})
	}
}

func TestEqual(t *testing.T) {
	s1 := ObjectVal(String, NewStringObj([]byte("abc")))
	s2 := ObjectVal(String, NewStringObj([]byte("abc")))
	a1 := ObjectVal(Array, NewArrayObj())
	a2 := ObjectVal(Array, NewArrayObj())

	require.True(t, Equal(NullVal(), NullVal()))
	require.True(t, Equal(NumberVal(3), NumberVal(3)))
	require.False(t, Equal(NumberVal(3), NumberVal(4)))
	require.True(t, Equal(s1, s2), "strings compare by content")
	require.False(t, Equal(a1, a2), "arrays compare by identity")
	require.True(t, Equal(a1, a1))
	require.False(t, Equal(NumberVal(1), NullVal()), "mismatched tags never equal")
}

func TestEqualReflexiveExceptNaN(t *testing.T) {
	vals := []Value{
		NullVal(),
		NumberVal(42),
		ObjectVal(String, NewStringObj([]byte("hi"))),
		ObjectVal(Array, NewArrayObj()),
		ObjectVal(Func, NewFuncObj()),
	}
	for _, v := range vals {
		require.True(t, Equal(v, v))
	}
	nan := NumberVal(nan())
	require.True(t, IsNaN(nan))
	require.False(t, Equal(nan, nan))
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestArrayGrow(t *testing.T) {
	arr := NewArrayObj()
	require.NoError(t, arr.Grow(3))
	require.Equal(t, 3, arr.Size)
	require.Equal(t, 16, arr.Cap, "capacity rounds up to a multiple of 16")
	for i := 0; i < 3; i++ {
		v, ok := arr.Get(i)
		require.True(t, ok)
		require.Equal(t, Null, v.Type)
	}

	arr.Set(0, NumberVal(1))
	arr.Set(1, NumberVal(2))
	require.NoError(t, arr.Grow(20))
	require.Equal(t, 23, arr.Size)
	require.Equal(t, ArrayCap(23), arr.Cap)

	v0, _ := arr.Get(0)
	v1, _ := arr.Get(1)
	require.Equal(t, 1.0, v0.Num(), "Grow preserves the existing prefix bitwise")
	require.Equal(t, 2.0, v1.Num())

	for i := 2; i < arr.Size; i++ {
		v, _ := arr.Get(i)
		require.Equal(t, Null, v.Type, "new suffix is initialized to NULL")
	}
}

func TestArrayGrowOverflow(t *testing.T) {
	arr := NewArrayObj()
	arr.Size = maxArraySize - 5
	err := arr.Grow(10)
	require.ErrorIs(t, err, errOverflow, "growing past the uint32 size ceiling is an overflow")
}

func TestArrayGrowOverflowWraps64BitInt(t *testing.T) {
	arr := NewArrayObj()
	arr.Size = math.MaxInt - 5
	err := arr.Grow(10)
	require.ErrorIs(t, err, errOverflow, "a sum that wraps a 64-bit int is still caught")
}

func TestArrayGetSetBounds(t *testing.T) {
	arr := NewArrayObj()
	require.NoError(t, arr.Grow(1))
	_, ok := arr.Get(1)
	require.False(t, ok, "index == size is out of range")
	_, ok = arr.Get(-1)
	require.False(t, ok)
	require.False(t, arr.Set(1, NumberVal(1)))
}

func TestObjectListLinkage(t *testing.T) {
	s := NewStringObj([]byte("a"))
	arr := NewArrayObj()
	SetNext(arr, s)
	require.Equal(t, Object(s), Next(arr))
	require.False(t, Marked(arr))
	SetMarked(arr, true)
	require.True(t, Marked(arr))
}
