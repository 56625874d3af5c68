package astros

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAstronautCraft(t *testing.T) {
	p := Person{"name": "A", "craft": "ISS"}

	line, err := FormatAstronautCraft(p)
	require.NoError(t, err)
	assert.Equal(t, "A is currently in space flying on the ISS! Hello!", line)

	line, err = FormatAstronautCraft(p, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "A is currently in space flying on the ISS! Hi", line)
}

func TestFormatAstronautCraftMissingField(t *testing.T) {
	_, err := FormatAstronautCraft(Person{"name": "A"})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "craft")

	_, err = FormatAstronautCraft(Person{"craft": "ISS"})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "name")
}

func TestPrintAstronautCraftIsRepeatable(t *testing.T) {
	p := Person{"name": "A", "craft": "ISS", "extra": 1}

	var first, second bytes.Buffer
	require.NoError(t, PrintAstronautCraft(&first, p))
	require.NoError(t, PrintAstronautCraft(&second, p))
	assert.Equal(t, "A is currently in space flying on the ISS! Hello!\n", first.String())
	assert.Equal(t, first.String(), second.String())
}

func TestPrintAstronautCraftWritesNothingOnError(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, PrintAstronautCraft(&buf, Person{}), ErrMissingField)
	assert.Zero(t, buf.Len())
}
