package injector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now int }

func TestRegister_RoundTrip(t *testing.T) {
	in := New()

	first := &clock{now: 1}
	in.Register("clock", first)
	got, ok := in.Get("clock")
	require.True(t, ok)
	assert.Same(t, first, got)

	second := &clock{now: 2}
	in.Register("clock", second)
	got, ok = in.Get("clock")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
}

func TestGet_Missing(t *testing.T) {
	in := New()

	got, ok := in.Get("nothing")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestNew_RegistersConfig(t *testing.T) {
	in := New()

	got, ok := in.Get(ConfigName)
	require.True(t, ok)
	assert.Same(t, in.Config(), got)
}

func TestInitConfig_MergesUnderRoot(t *testing.T) {
	in := New()

	require.NoError(t, in.InitConfig(map[string]any{
		"greeter": map[string]any{"msg": "hello"},
	}))
	assert.Equal(t, "hello", in.Config().Get("_.config.greeter.msg"))
	require.NoError(t, in.InitConfig(nil))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	c.Register("b", FactoryOf(nil))
	c.Register("a", FactoryOf(nil))

	_, ok := c.Lookup("a")
	assert.True(t, ok)
	_, ok = c.Lookup("zzz")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, c.EntryPoints())

	assert.Panics(t, func() { c.Register("a", FactoryOf(nil)) })
	assert.Panics(t, func() { c.Register("", FactoryOf(nil)) })
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateOrdered.Terminal())
}

func TestErrors_Messages(t *testing.T) {
	ierr := InitializationError{Package: "db", Err: errors.New("boom")}
	assert.Equal(t, `initialize package "db": boom`, ierr.Error())

	derr := DuplicatePackageError{Name: "db", Origin: "a/db", Duplicate: "b/db"}
	assert.Contains(t, derr.Error(), "a/db")
	assert.Contains(t, derr.Error(), "b/db")

	eerr := EntryPointError{Package: "db", EntryPoint: "dbmain", Origin: "a/db"}
	assert.ErrorIs(t, eerr, ErrUnknownEntryPoint)
	assert.Contains(t, eerr.Error(), "dbmain")
}
