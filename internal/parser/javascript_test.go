package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/code-atlas/internal/core"
)

const jsSample = `/**
 * Formats a display name.
 */
function formatName(user) {
  return user.name;
}

const load = async (id) => {
  return fetch(id);
};

class Store extends Base {
  get(id) {
    return this.items[id];
  }
}`

func TestParseJavaScript(t *testing.T) {
	symbols := parseJavaScript(jsSample)
	require.Len(t, symbols, 4)

	fn := symbols[0]
	assert.Equal(t, "formatName", fn.Name)
	assert.Equal(t, core.KindFunction, fn.Kind)
	assert.Equal(t, 4, fn.StartLine)
	assert.Equal(t, 6, fn.EndLine)
	assert.Equal(t, "Formats a display name.", fn.Docstring)

	arrow := symbols[1]
	assert.Equal(t, "load", arrow.Name)
	assert.Equal(t, core.KindArrowFunction, arrow.Kind)
	assert.Equal(t, 8, arrow.StartLine)
	assert.Equal(t, 10, arrow.EndLine)

	cls := symbols[2]
	assert.Equal(t, "Store", cls.Name)
	assert.Equal(t, core.KindClass, cls.Kind)
	assert.Equal(t, []string{"Base"}, cls.Inherits)
	require.Len(t, cls.Methods, 1)
	assert.Equal(t, "get", cls.Methods[0].Name)

	meth := symbols[3]
	assert.Equal(t, "Store.get", meth.Name)
	assert.Equal(t, core.KindMethod, meth.Kind)
	assert.Equal(t, 13, meth.StartLine)
	assert.Equal(t, 15, meth.EndLine)
}

func TestParseJavaScriptSkipsControlFlow(t *testing.T) {
	content := `function run() {
  if (ready) {
    go();
  }
  for (const x of xs) {
    use(x);
  }
}`
	symbols := parseJavaScript(content)
	require.Len(t, symbols, 1)
	assert.Equal(t, "run", symbols[0].Name)
	assert.Equal(t, 8, symbols[0].EndLine)
}

func TestParseTypeScriptAnnotations(t *testing.T) {
	content := `const toId: Mapper = (s) => {
  return s.trim();
};`
	symbols := parseJavaScript(content)
	require.Len(t, symbols, 1)
	assert.Equal(t, "toId", symbols[0].Name)
	assert.Equal(t, core.KindArrowFunction, symbols[0].Kind)
}

const svelteSample = `<script>
  function add(a, b) {
    return a + b;
  }
</script>

<style>
  .btn { color: red; }
</style>

<main>
  <button class="btn">Add</button>
</main>`

func TestParseSvelte(t *testing.T) {
	symbols := parseSvelte(svelteSample)
	require.Len(t, symbols, 4)

	assert.Equal(t, "script", symbols[0].Name)
	assert.Equal(t, core.KindSvelteScript, symbols[0].Kind)
	assert.Equal(t, 1, symbols[0].StartLine)
	assert.Equal(t, 5, symbols[0].EndLine)

	assert.Equal(t, "add", symbols[1].Name)
	assert.Equal(t, core.KindFunction, symbols[1].Kind)
	assert.Equal(t, 2, symbols[1].StartLine)
	assert.Equal(t, 4, symbols[1].EndLine)

	assert.Equal(t, "style", symbols[2].Name)
	assert.Equal(t, core.KindSvelteStyle, symbols[2].Kind)

	tmpl := symbols[3]
	assert.Equal(t, "template", tmpl.Name)
	assert.Equal(t, core.KindSvelteTemplate, tmpl.Kind)
	assert.Equal(t, 11, tmpl.StartLine)
	assert.Equal(t, 13, tmpl.EndLine)
}
