package stdlib_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/cinder/pkg/program"
	"github.com/kristofer/cinder/pkg/stdlib"
	"github.com/kristofer/cinder/pkg/value"
)

func TestRegisterMakesEveryFunctionLookupable(t *testing.T) {
	p := program.New()
	stdlib.Register(p)

	for _, name := range []string{"sqrt", "floor", "ceil", "len", "concat"} {
		v, ok := p.LookupHost(name)
		require.True(t, ok, name)
		require.Equal(t, value.CFunc, v.Type)
	}
}

func TestSqrtFloorCeil(t *testing.T) {
	p := program.New()
	stdlib.Register(p)

	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"sqrt", 9, 3},
		{"floor", 3.7, 3},
		{"ceil", 3.1, 4},
	}
	for _, c := range cases {
		fn, _ := p.LookupHost(c.name)
		var ret value.Value
		err := fn.CFn()(p, &ret, []value.Value{value.NumberVal(c.in)})
		require.NoError(t, err)
		require.Equal(t, c.want, ret.Num())
	}
}

func TestLenStringAndArray(t *testing.T) {
	p := program.New()
	stdlib.Register(p)
	fn, _ := p.LookupHost("len")

	var ret value.Value
	err := fn.CFn()(p, &ret, []value.Value{p.NewString("hello")})
	require.NoError(t, err)
	require.Equal(t, 5.0, ret.Num())

	arrVal := p.NewArray()
	arr, _ := arrVal.AsArray()
	require.NoError(t, p.GrowArray(arr, 3))
	err = fn.CFn()(p, &ret, []value.Value{arrVal})
	require.NoError(t, err)
	require.Equal(t, 3.0, ret.Num())
}

func TestLenRejectsNumber(t *testing.T) {
	p := program.New()
	stdlib.Register(p)
	fn, _ := p.LookupHost("len")

	var ret value.Value
	err := fn.CFn()(p, &ret, []value.Value{value.NumberVal(1)})
	require.Error(t, err)
}

func TestConcatAllocatesNewString(t *testing.T) {
	p := program.New()
	stdlib.Register(p)
	fn, _ := p.LookupHost("concat")

	var ret value.Value
	mark := p.AnchorMark()
	err := fn.CFn()(p, &ret, []value.Value{p.NewString("foo"), p.NewString("bar")})
	require.NoError(t, err)
	p.AnchorTruncate(mark)

	s, ok := ret.AsString()
	require.True(t, ok)
	require.Equal(t, "foobar\x00", s) // NewString appends the usual single trailing NUL
}

func TestConcatRejectsNonStrings(t *testing.T) {
	p := program.New()
	stdlib.Register(p)
	fn, _ := p.LookupHost("concat")

	var ret value.Value
	err := fn.CFn()(p, &ret, []value.Value{value.NumberVal(1), p.NewString("bar")})
	require.Error(t, err)
}
