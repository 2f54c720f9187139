//go:build !funcbox_diagnostics

package function_test

import (
	"testing"

	"github.com/on-the-ground/funcbox/function"

	"github.com/stretchr/testify/assert"
)

func TestFunction_IntrospectionDisabled(t *testing.T) {
	f := function.New[int, int](function.Func[int, int](func(x int) int { return x }))

	assert.Zero(t, f.Address())
	assert.Empty(t, f.Annotation())

	var empty function.Function[int, int]
	assert.Zero(t, empty.Address())
	assert.Empty(t, empty.Annotation())
}
