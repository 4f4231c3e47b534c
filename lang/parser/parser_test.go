package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/flowgraph/lang/ast"
)

type testCase struct {
	description string
	src         string
	check       func(t *testing.T, prog *ast.Program)
}

func TestParseStatements(t *testing.T) {
	tests := []testCase{
		{
			description: "simple assignment",
			src:         `x = 1;`,
			check: func(t *testing.T, prog *ast.Program) {
				require.Len(t, prog.Body, 1)
				a, ok := prog.Body[0].(*ast.Assign)
				require.True(t, ok)
				require.Len(t, a.Targets, 1)
				ident, ok := a.Targets[0].(*ast.Ident)
				require.True(t, ok)
				assert.Equal(t, "x", ident.Name)
				lit, ok := a.Value.(*ast.IntLit)
				require.True(t, ok)
				assert.EqualValues(t, 1, lit.Value)
			},
		},
		{
			description: "chained multiple targets",
			src:         `a = b = 1;`,
			check: func(t *testing.T, prog *ast.Program) {
				a, ok := prog.Body[0].(*ast.Assign)
				require.True(t, ok)
				require.Len(t, a.Targets, 2)
			},
		},
		{
			description: "tuple destructuring target",
			src:         `x, y = pair;`,
			check: func(t *testing.T, prog *ast.Program) {
				a, ok := prog.Body[0].(*ast.Assign)
				require.True(t, ok)
				tup, ok := a.Targets[0].(*ast.TupleLit)
				require.True(t, ok)
				assert.Len(t, tup.Elts, 2)
			},
		},
		{
			description: "augmented assignment",
			src:         `x += 1;`,
			check: func(t *testing.T, prog *ast.Program) {
				aug, ok := prog.Body[0].(*ast.AugAssign)
				require.True(t, ok)
				assert.Equal(t, "+", aug.Op)
			},
		},
		{
			description: "attribute and call chain",
			src:         `o.foo(1, k=2);`,
			check: func(t *testing.T, prog *ast.Program) {
				call, ok := prog.Body[0].(*ast.ExprStmt).X.(*ast.Call)
				require.True(t, ok)
				attr, ok := call.Func.(*ast.Attribute)
				require.True(t, ok)
				assert.Equal(t, "foo", attr.Attr)
				require.Len(t, call.Args, 2)
				assert.Equal(t, "k", call.Args[1].Name)
			},
		},
		{
			description: "subscript with slice",
			src:         `y = x[1:2];`,
			check: func(t *testing.T, prog *ast.Program) {
				a := prog.Body[0].(*ast.Assign)
				sub, ok := a.Value.(*ast.Subscript)
				require.True(t, ok)
				sl, ok := sub.Index.(*ast.Slice)
				require.True(t, ok)
				assert.NotNil(t, sl.Lower)
				assert.NotNil(t, sl.Upper)
				assert.Nil(t, sl.Step)
			},
		},
		{
			description: "multi-dimensional index becomes a tuple index",
			src:         `y = m[1, 2];`,
			check: func(t *testing.T, prog *ast.Program) {
				a := prog.Body[0].(*ast.Assign)
				sub := a.Value.(*ast.Subscript)
				_, ok := sub.Index.(*ast.TupleIndex)
				require.True(t, ok)
			},
		},
		{
			description: "negative numeric literal stays a literal",
			src:         `x = -5;`,
			check: func(t *testing.T, prog *ast.Program) {
				a := prog.Body[0].(*ast.Assign)
				lit, ok := a.Value.(*ast.IntLit)
				require.True(t, ok)
				assert.EqualValues(t, -5, lit.Value)
			},
		},
		{
			description: "negation of non-literal stays a unary op",
			src:         `x = -y;`,
			check: func(t *testing.T, prog *ast.Program) {
				a := prog.Body[0].(*ast.Assign)
				_, ok := a.Value.(*ast.UnaryOp)
				require.True(t, ok)
			},
		},
		{
			description: "function and class definitions",
			src: `
class Point {
	def __init__(self, x) {
		self.x = x;
	}
}
def make(x) {
	return Point(x);
}
`,
			check: func(t *testing.T, prog *ast.Program) {
				require.Len(t, prog.Body, 2)
				cls, ok := prog.Body[0].(*ast.ClassDef)
				require.True(t, ok)
				assert.Equal(t, "Point", cls.Name)
				fn, ok := prog.Body[1].(*ast.FunctionDef)
				require.True(t, ok)
				assert.Equal(t, "make", fn.Name)
			},
		},
		{
			description: "container literals",
			src:         `x = [1, 2]; y = (1, 2); z = {1, 2}; d = {"a": 1};`,
			check: func(t *testing.T, prog *ast.Program) {
				require.Len(t, prog.Body, 4)
				_, ok := prog.Body[0].(*ast.Assign).Value.(*ast.ListLit)
				require.True(t, ok)
				_, ok = prog.Body[1].(*ast.Assign).Value.(*ast.TupleLit)
				require.True(t, ok)
				_, ok = prog.Body[2].(*ast.Assign).Value.(*ast.SetLit)
				require.True(t, ok)
				dict, ok := prog.Body[3].(*ast.Assign).Value.(*ast.DictLit)
				require.True(t, ok)
				assert.Len(t, dict.Keys, 1)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			prog, err := Parse([]byte(tc.src))
			require.NoError(t, err, tc.description)
			tc.check(t, prog)
		})
	}
}

func TestParseRejectsChainedComparison(t *testing.T) {
	_, err := Parse([]byte(`x = 1 < 2 < 3;`))
	assert.Error(t, err)
}

func TestParseRejectsUnterminatedBlock(t *testing.T) {
	_, err := Parse([]byte(`def f() { return 1;`))
	assert.Error(t, err)
}
