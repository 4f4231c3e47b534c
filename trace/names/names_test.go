package names

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/flowgraph/trace/value"
)

func TestResolveNativeFunc(t *testing.T) {
	module, qualified := Resolve(&value.NativeFunc{Module: "builtins", Name: "len"})
	assert.Equal(t, "builtins", module)
	assert.Equal(t, "len", qualified)
}

func TestResolveNativeFuncDefaultsModuleToBuiltins(t *testing.T) {
	module, _ := Resolve(&value.NativeFunc{Name: "len"})
	assert.Equal(t, "builtins", module)
}

func TestResolveFunction(t *testing.T) {
	module, qualified := Resolve(&value.Function{Module: "pkg", Name: "f"})
	assert.Equal(t, "pkg", module)
	assert.Equal(t, "f", qualified)
}

func TestResolveFunctionDefaultsModuleToBuiltins(t *testing.T) {
	module, _ := Resolve(&value.Function{Name: "f"})
	assert.Equal(t, "builtins", module)
}

func TestResolveBoundMethodWithNamedFunction(t *testing.T) {
	cls := &value.Class{Module: "pkg", Name: "Point"}
	fn := &value.Function{Module: "pkg", Receiver: cls, Name: "move"}
	bm := &value.BoundMethod{Fn: fn, Self: value.NewInstance(cls)}
	module, qualified := Resolve(bm)
	assert.Equal(t, "pkg", module)
	assert.Equal(t, "Point.move", qualified)
}

func TestResolveBoundMethodWithAnonymousFunctionFallsBackToLambda(t *testing.T) {
	cls := &value.Class{Module: "pkg", Name: "Point"}
	fn := &value.Function{Receiver: cls}
	bm := &value.BoundMethod{Fn: fn, Self: value.NewInstance(cls)}
	module, qualified := Resolve(bm)
	assert.Equal(t, "builtins", module)
	assert.Equal(t, "pkg.Point.<lambda>", qualified)
}

func TestResolveBoundMethodWithNoFunctionFallsBackToCallable(t *testing.T) {
	bm := &value.BoundMethod{Fn: nil, Self: value.NewInstance(&value.Class{Module: "pkg", Name: "Point"})}
	module, qualified := Resolve(bm)
	assert.Equal(t, "builtins", module)
	assert.Equal(t, "pkg.Point.<callable>", qualified)
}

func TestResolveClass(t *testing.T) {
	module, qualified := Resolve(&value.Class{Module: "pkg", Name: "Point"})
	assert.Equal(t, "pkg", module)
	assert.Equal(t, "Point", qualified)
}

func TestResolveNilCallable(t *testing.T) {
	module, qualified := Resolve(nil)
	assert.Equal(t, "builtins", module)
	assert.Equal(t, "<unknown>", qualified)
}

func TestResolveDefaultFallsBackToTypeName(t *testing.T) {
	module, qualified := Resolve(value.Int(1))
	assert.Equal(t, "builtins", module)
	assert.Equal(t, value.Int(1).TypeName(), qualified)
}

func TestQualifiedNameOfJoinsModuleAndName(t *testing.T) {
	assert.Equal(t, "pkg.f", QualifiedNameOf(&value.Function{Module: "pkg", Name: "f"}))
}
