package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/code-atlas/internal/core"
)

const pySample = `"""Module docstring."""
import os

class UserService(BaseService):
    """Manages users."""

    def __init__(self, db):
        self.db = db

    def get_user(self, user_id):
        """Fetch one user."""
        return self.db.get(user_id)

def helper():
    return 1`

func TestParsePython(t *testing.T) {
	symbols := parsePython(pySample)
	require.Len(t, symbols, 4)

	cls := symbols[0]
	assert.Equal(t, "UserService", cls.Name)
	assert.Equal(t, core.KindClass, cls.Kind)
	assert.Equal(t, 4, cls.StartLine)
	assert.Equal(t, []string{"BaseService"}, cls.Inherits)
	assert.Equal(t, "Manages users.", cls.Docstring)
	require.Len(t, cls.Methods, 2)
	assert.Equal(t, "__init__", cls.Methods[0].Name)
	assert.Equal(t, "get_user", cls.Methods[1].Name)

	assert.Equal(t, "UserService.__init__", symbols[1].Name)
	assert.Equal(t, core.KindMethod, symbols[1].Kind)
	assert.Equal(t, 7, symbols[1].StartLine)
	assert.Equal(t, 8, symbols[1].EndLine)

	assert.Equal(t, "UserService.get_user", symbols[2].Name)
	assert.Equal(t, "Fetch one user.", symbols[2].Docstring)

	fn := symbols[3]
	assert.Equal(t, "helper", fn.Name)
	assert.Equal(t, core.KindFunction, fn.Kind)
	assert.Equal(t, 14, fn.StartLine)
	assert.Equal(t, 15, fn.EndLine)
}

func TestParsePythonNestedFunctions(t *testing.T) {
	content := `def outer():
    def inner():
        return 2
    return inner`

	symbols := parsePython(content)
	require.Len(t, symbols, 2)
	assert.Equal(t, "outer", symbols[0].Name)
	assert.Equal(t, core.KindFunction, symbols[0].Kind)
	assert.Equal(t, "inner", symbols[1].Name)
	assert.Equal(t, core.KindFunction, symbols[1].Kind)
}

func TestParsePythonEmpty(t *testing.T) {
	assert.Empty(t, parsePython(""))
	assert.Empty(t, parsePython("# just a comment\n"))
}

func TestPyDocstringMultiline(t *testing.T) {
	content := `def f():
    """First line
    second line.
    """
    return 1`

	symbols := parsePython(content)
	require.Len(t, symbols, 1)
	assert.Equal(t, "First line\nsecond line.", symbols[0].Docstring)
}
