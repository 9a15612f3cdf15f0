package mountopts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RequiresSource(t *testing.T) {
	_, err := Parse("daxdev=/dev/dax0.0")
	assert.Error(t, err)
}

func TestParse_SourceAlias(t *testing.T) {
	opts, err := Parse("shadow=/srv/shadow")
	require.NoError(t, err)
	assert.Equal(t, "/srv/shadow", opts.Source)
}

func TestParse_Defaults(t *testing.T) {
	opts, err := Parse("source=/srv/shadow")
	require.NoError(t, err)
	assert.True(t, opts.Flock)
	assert.False(t, opts.Writeback)
	assert.False(t, opts.HasDaxDev)
	assert.Equal(t, CacheAuto, opts.Cache)
	assert.Equal(t, 1.0, opts.Timeout)
	assert.True(t, opts.Readdirplus)
}

func TestParse_DaxDevEnablesCapability(t *testing.T) {
	opts, err := Parse("source=/srv/shadow,daxdev=/dev/dax0.0")
	require.NoError(t, err)
	assert.True(t, opts.HasDaxDev)
	assert.Equal(t, "/dev/dax0.0", opts.DaxDev)
}

func TestParse_CacheModeSelectsDefaultTimeout(t *testing.T) {
	never, err := Parse("source=/s,cache=never")
	require.NoError(t, err)
	assert.Equal(t, 0.0, never.Timeout)

	always, err := Parse("source=/s,cache=always")
	require.NoError(t, err)
	assert.Equal(t, 86400.0, always.Timeout)
}

func TestParse_ExplicitTimeoutOverridesCacheDefault(t *testing.T) {
	opts, err := Parse("source=/s,cache=never,timeout=2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, opts.Timeout)
	assert.True(t, opts.TimeoutSet)
}

func TestParse_NegativeTimeoutRejected(t *testing.T) {
	_, err := Parse("source=/s,timeout=-1")
	assert.Error(t, err)
}

func TestParse_NoFlockDisablesDefault(t *testing.T) {
	opts, err := Parse("source=/s,no_flock")
	require.NoError(t, err)
	assert.False(t, opts.Flock)
}

func TestParse_UnrecognizedOptionRejected(t *testing.T) {
	_, err := Parse("source=/s,bogus")
	assert.Error(t, err)
}

func TestParse_InvalidCacheModeRejected(t *testing.T) {
	_, err := Parse("source=/s,cache=sometimes")
	assert.Error(t, err)
}

func TestParse_PassYAMLAndDebug(t *testing.T) {
	opts, err := Parse("source=/s,pass_yaml,debug=2")
	require.NoError(t, err)
	assert.True(t, opts.PassYAML)
	assert.Equal(t, 2, opts.Debug)
}
