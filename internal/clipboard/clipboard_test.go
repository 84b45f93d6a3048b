package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	var m Memory

	text, err := m.ReadText()
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, m.WriteText("SELECT 1;\n"))
	require.NoError(t, m.WriteText("SELECT 2;\n"))

	text, err = m.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2;\n", text)
	assert.Equal(t, []string{"SELECT 1;\n", "SELECT 2;\n"}, m.History())
}

func TestDetect(t *testing.T) {
	sink := Detect()
	require.NotNil(t, sink)
	if (System{}).Available() {
		assert.IsType(t, System{}, sink)
	} else {
		assert.IsType(t, &Memory{}, sink)
	}
}
