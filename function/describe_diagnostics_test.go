//go:build funcbox_diagnostics

package function_test

import (
	"testing"

	"github.com/on-the-ground/funcbox/function"

	"github.com/stretchr/testify/assert"
)

type labelled struct{}

func (labelled) Call(x int) int { return x }

func (labelled) Annotation() string { return "labelled payload" }

func double(x int) int { return 2 * x }

func TestFunction_IntrospectionEnabled(t *testing.T) {
	f := function.New[int, int](function.Func[int, int](double))
	assert.NotZero(t, f.Address())
	assert.Contains(t, f.Annotation(), "double")

	l := function.New[int, int](labelled{})
	assert.Zero(t, l.Address())
	assert.Equal(t, "labelled payload", l.Annotation())

	a := function.New[int, int](adder{n: 1})
	assert.Contains(t, a.Annotation(), "adder")

	var empty function.Function[int, int]
	assert.Zero(t, empty.Address())
	assert.Empty(t, empty.Annotation())
}
