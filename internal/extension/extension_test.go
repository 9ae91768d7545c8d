package extension

import (
	"testing"

	"github.com/forrst/forrst/internal/eventbus"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ev *eventbus.Event) error { return nil }

func TestActiveSetIncludesGlobalExtensions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:tracing", IsGlobal: true, Core: true}))
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:redaction", IsGlobal: false, Core: true}))

	active, ferr := r.ActiveSet(nil, version.ExtensionScope{})
	require.Nil(t, ferr)
	require.Len(t, active, 1)
	assert.Equal(t, "urn:cline:forrst:ext:tracing", active[0].URN)
}

func TestActiveSetAddsDeclaredExtensions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:tracing", IsGlobal: true, Core: true}))
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:redaction", Core: true}))

	active, ferr := r.ActiveSet([]string{"urn:cline:forrst:ext:redaction"}, version.ExtensionScope{})
	require.Nil(t, ferr)
	assert.Len(t, active, 2)
}

func TestActiveSetRejectsUnsupportedDeclared(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:redaction", Core: true}))

	_, ferr := r.ActiveSet([]string{"urn:cline:forrst:ext:redaction"}, version.ExtensionScope{Supported: []string{"urn:cline:forrst:ext:tracing"}})
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindExtensionNotApplicable, ferr.Code)
}

func TestActiveSetSupportedScopeKeepsGlobalExtensions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:tracing", IsGlobal: true, Core: true}))
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:redaction", Core: true}))

	// The supported set constrains declared extensions only; a global
	// extension outside it stays active.
	active, ferr := r.ActiveSet([]string{"urn:cline:forrst:ext:redaction"}, version.ExtensionScope{Supported: []string{"urn:cline:forrst:ext:redaction"}})
	require.Nil(t, ferr)
	require.Len(t, active, 2)
	assert.Equal(t, "urn:cline:forrst:ext:tracing", active[0].URN)
	assert.Equal(t, "urn:cline:forrst:ext:redaction", active[1].URN)
}

func TestActiveSetRejectsExcludedDeclared(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:redaction", Core: true}))

	_, ferr := r.ActiveSet([]string{"urn:cline:forrst:ext:redaction"}, version.ExtensionScope{Excluded: []string{"urn:cline:forrst:ext:redaction"}})
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindExtensionNotApplicable, ferr.Code)
}

func TestActiveSetExcludesGlobalExtensionForFunction(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "urn:cline:forrst:ext:tracing", IsGlobal: true, Core: true}))

	active, ferr := r.ActiveSet(nil, version.ExtensionScope{Excluded: []string{"urn:cline:forrst:ext:tracing"}})
	require.Nil(t, ferr)
	assert.Empty(t, active)
}

func TestActiveSetUnregisteredDeclaredIsNotSupported(t *testing.T) {
	r := NewRegistry()
	_, ferr := r.ActiveSet([]string{"urn:cline:forrst:ext:unknown"}, version.ExtensionScope{})
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindExtensionNotSupported, ferr.Code)
}

func TestEntriesOrdersByPriorityThenRegistration(t *testing.T) {
	descs := []Descriptor{
		{
			URN: "urn:cline:forrst:ext:b", IsErrorFatal: false,
			Subscriptions: []Subscription{{Event: eventbus.EventFunctionExecuted, Priority: 10, Handler: noop}},
		},
		{
			URN: "urn:cline:forrst:ext:a", IsErrorFatal: true,
			Subscriptions: []Subscription{{Event: eventbus.EventFunctionExecuted, Priority: 5, Handler: noop}},
		},
	}
	entries := Entries(descs, eventbus.EventFunctionExecuted)
	require.Len(t, entries, 2)
	assert.Equal(t, "urn:cline:forrst:ext:a", entries[0].ExtensionURN)
	assert.True(t, entries[0].Fatal)
	assert.Equal(t, "urn:cline:forrst:ext:b", entries[1].ExtensionURN)
	assert.False(t, entries[1].Fatal)
}
