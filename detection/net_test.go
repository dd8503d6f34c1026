package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNames(t *testing.T) {
	t.Parallel()
	names := parseNames("person\r\nbicycle\n\ncar\n")
	assert.Equal(t, []string{"person", "bicycle", "", "car"}, names)
}

func TestClassNameFallback(t *testing.T) {
	t.Parallel()
	n := &yoloNet{classNames: []string{"person"}}
	assert.Equal(t, "person", n.className(0))
	assert.Equal(t, "class7", n.className(7))
}
