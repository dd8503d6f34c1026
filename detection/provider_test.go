package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOrder(t *testing.T) {
	t.Parallel()

	probed := 0
	present := func() bool { probed++; return true }
	absent := func() bool { probed++; return false }

	tests := []struct {
		name        string
		accelerator string
		probe       func() bool
		want        []string
	}{
		{"empty defaults to cpu", "", present, []string{"cpu"}},
		{"cpu never uses cuda", "cpu", present, []string{"cpu"}},
		{"cuda falls back to cpu", "cuda", absent, []string{"cuda", "cpu"}},
		{"auto with device", "auto", present, []string{"cuda", "cpu"}},
		{"auto without device", "auto", absent, []string{"cpu"}},
	}
	for _, tt := range tests {
		got, err := providerOrder(tt.accelerator, tt.probe)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
	// Only the two auto cases look for a device.
	assert.Equal(t, 2, probed)
}

func TestProviderOrder_Unknown(t *testing.T) {
	t.Parallel()
	_, err := providerOrder("tpu", func() bool { return true })
	assert.ErrorContains(t, err, "unknown accelerator")
}

func TestNewProviderKinds(t *testing.T) {
	t.Parallel()
	assert.IsType(t, &GPUProvider{}, newProvider("cuda"))
	assert.IsType(t, &CPUProvider{}, newProvider("cpu"))
}
