package version

import (
	"testing"

	"github.com/forrst/forrst/internal/ferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrdersCreate(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{URN: "orders.create", Version: MustParse("1.0.0"), Deprecated: &Deprecation{Reason: "superseded"}}))
	require.NoError(t, r.Register(Descriptor{URN: "orders.create", Version: MustParse("2.0.0")}))
	require.NoError(t, r.Register(Descriptor{URN: "orders.create", Version: MustParse("3.0.0-beta.1")}))
	return r
}

func TestResolveDefaultPicksHighestStable(t *testing.T) {
	r := seedOrdersCreate(t)
	d, ferr := r.Resolve("orders.create", nil)
	require.Nil(t, ferr)
	assert.Equal(t, "2.0.0", d.Version.String())
}

func TestResolveExactMatch(t *testing.T) {
	r := seedOrdersCreate(t)
	v := "3.0.0-beta.1"
	d, ferr := r.Resolve("orders.create", &v)
	require.Nil(t, ferr)
	assert.Equal(t, "3.0.0-beta.1", d.Version.String())
}

func TestResolveVersionNotFound(t *testing.T) {
	r := seedOrdersCreate(t)
	v := "5.0.0"
	_, ferr := r.Resolve("orders.create", &v)
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindVersionNotFound, ferr.Code)
	assert.Equal(t, []string{"1.0.0", "2.0.0", "3.0.0-beta.1"}, ferr.Details["available_versions"])
}

func TestResolveFunctionNotFound(t *testing.T) {
	r := NewRegistry()
	_, ferr := r.Resolve("orders.cancel", nil)
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindFunctionNotFound, ferr.Code)
}

func TestRegisterRejectsDuplicateVersion(t *testing.T) {
	r := seedOrdersCreate(t)
	err := r.Register(Descriptor{URN: "orders.create", Version: MustParse("2.0.0")})
	require.Error(t, err)
}

func TestRegisterRejectsMutuallyExclusiveExtensionScope(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{
		URN:     "orders.cancel",
		Version: MustParse("1.0.0"),
		Extensions: ExtensionScope{
			Supported: []string{"urn:cline:forrst:ext:tracing"},
			Excluded:  []string{"urn:cline:forrst:ext:redaction"},
		},
	})
	require.Error(t, err)
}
