package envelope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/forrst/forrst/internal/ferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullRequest(t *testing.T) {
	raw := []byte(`{
		"protocol": {"name": "forrst", "version": "1.0.0"},
		"id": "req-1",
		"call": {
			"function": "orders.create",
			"version": "2.0.0",
			"arguments": {"customer_id": "c-1", "items": ["widget"]}
		},
		"context": {"tenant": "acme"},
		"extensions": [{"urn": "urn:cline:forrst:ext:tracing", "options": {"trace_id": "tr_abc"}}]
	}`)

	req, ferr := Parse(raw, 0)
	require.Nil(t, ferr)
	assert.Equal(t, "forrst", req.Protocol.Name)
	assert.Equal(t, "1.0.0", req.Protocol.Version)
	assert.True(t, req.HasID)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, "orders.create", req.Call.Function)
	require.NotNil(t, req.Call.Version)
	assert.Equal(t, "2.0.0", *req.Call.Version)
	require.NotNil(t, req.Call.Arguments)
	cust, ok := req.Call.Arguments.Get("customer_id")
	require.True(t, ok)
	assert.Equal(t, "c-1", cust.Raw())
	require.Len(t, req.Extensions, 1)
	assert.Equal(t, "urn:cline:forrst:ext:tracing", req.Extensions[0].URN)
}

func TestParseIgnoresUnknownTopLevelMembers(t *testing.T) {
	raw := []byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping"},"future_member":42}`)
	req, ferr := Parse(raw, 0)
	require.Nil(t, ferr)
	assert.Equal(t, "ping", req.Call.Function)
}

func TestParseAbsentVersusNullVersion(t *testing.T) {
	absent, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping"}}`), 0)
	require.Nil(t, ferr)
	assert.Nil(t, absent.Call.Version)

	explicit, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping","version":null}}`), 0)
	require.Nil(t, ferr)
	assert.Nil(t, explicit.Call.Version)
}

func TestParseAbsentVersusNullArguments(t *testing.T) {
	absent, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping"}}`), 0)
	require.Nil(t, ferr)
	assert.Nil(t, absent.Call.Arguments)

	explicit, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping","arguments":null}}`), 0)
	require.Nil(t, ferr)
	require.NotNil(t, explicit.Call.Arguments)
	assert.True(t, explicit.Call.Arguments.IsNull())
}

func TestParseAbsentVersusNullContext(t *testing.T) {
	absent, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping"}}`), 0)
	require.Nil(t, ferr)
	assert.Nil(t, absent.Context)

	explicit, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping"},"context":null}`), 0)
	require.Nil(t, ferr)
	require.NotNil(t, explicit.Context)
	assert.True(t, explicit.Context.IsNull())
}

func TestParseAbsentVersusNullExtensionOptions(t *testing.T) {
	raw := []byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping"},"extensions":[{"urn":"urn:cline:forrst:ext:tracing"},{"urn":"urn:cline:forrst:ext:retry","options":null}]}`)
	req, ferr := Parse(raw, 0)
	require.Nil(t, ferr)
	require.Len(t, req.Extensions, 2)
	assert.Nil(t, req.Extensions[0].Options)
	require.NotNil(t, req.Extensions[1].Options)
	assert.True(t, req.Extensions[1].Options.IsNull())
}

func TestParseUnparseableIDLeavesHasIDFalse(t *testing.T) {
	req, ferr := Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":{"not":"a string"},"call":{"function":"ping"}}`), 0)
	require.Nil(t, ferr)
	assert.False(t, req.HasID)

	req, ferr = Parse([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":null,"call":{"function":"ping"}}`), 0)
	require.Nil(t, ferr)
	assert.False(t, req.HasID)
}

func TestParseTopLevelArrayIsInvalidRequest(t *testing.T) {
	_, ferr := Parse([]byte(`  [{"protocol":{}}]`), 0)
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindInvalidRequest, ferr.Code)
	require.NotNil(t, ferr.Source)
	require.NotNil(t, ferr.Source.Position)
	assert.Equal(t, 2, *ferr.Source.Position)
}

func TestParseEmptyBodyIsInvalidRequest(t *testing.T) {
	_, ferr := Parse(nil, 0)
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindInvalidRequest, ferr.Code)
}

func TestParseSyntaxErrorCarriesByteOffset(t *testing.T) {
	_, ferr := Parse([]byte(`{"protocol": {`), 0)
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindParseError, ferr.Code)
	require.NotNil(t, ferr.Source)
	require.NotNil(t, ferr.Source.Position)
	assert.Greater(t, *ferr.Source.Position, 0)
}

func TestParseEnforcesSizeCap(t *testing.T) {
	big := `{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","call":{"function":"ping","arguments":{"pad":"` +
		strings.Repeat("x", 256) + `"}}}`
	_, ferr := Parse([]byte(big), 64)
	require.NotNil(t, ferr)
	assert.Equal(t, ferrors.KindInvalidRequest, ferr.Code)
	assert.Equal(t, 64, ferr.Details["limit_bytes"])
}

func TestSerializeRejectsResultAndErrorsTogether(t *testing.T) {
	result := Scalar("ok")
	resp := &Response{
		Protocol: Protocol{Name: "forrst", Version: "1.0.0"},
		Result:   &result,
		Errors:   []*ferrors.Error{ferrors.New(ferrors.KindInternalError, "boom")},
	}
	_, err := Serialize(resp)
	assert.Error(t, err)

	neither := &Response{Protocol: Protocol{Name: "forrst", Version: "1.0.0"}}
	_, err = Serialize(neither)
	assert.Error(t, err)
}

func TestSerializeSuccessRoundTrip(t *testing.T) {
	id := "req-9"
	resp := NewSuccess(Protocol{Name: "forrst", Version: "1.0.0"}, &id, Object(map[string]Value{
		"order_id": Scalar("o-1"),
		"items":    List(Scalar("widget"), Scalar("gadget")),
		"note":     Null(),
	}))
	resp.SetMeta("deprecated", Object(map[string]Value{"reason": Scalar("old")}))
	resp.AddExtension("urn:cline:forrst:ext:tracing", Object(map[string]Value{"trace_id": Scalar("t")}))

	out, err := Serialize(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.NotNil(t, decoded.ID)
	assert.Equal(t, "req-9", *decoded.ID)
	require.NotNil(t, decoded.Result)
	orderID, ok := decoded.Result.Get("order_id")
	require.True(t, ok)
	assert.Equal(t, "o-1", orderID.Raw())
	note, ok := decoded.Result.Get("note")
	require.True(t, ok)
	assert.True(t, note.IsNull())
	require.Len(t, decoded.Extensions, 1)
	assert.Equal(t, "urn:cline:forrst:ext:tracing", decoded.Extensions[0].URN)
}

func TestResponseRoundTripKeepsExplicitNullResult(t *testing.T) {
	id := "r"
	resp := NewSuccess(Protocol{Name: "forrst", Version: "1.0.0"}, &id, Null())
	out, err := Serialize(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"result":null`)

	var decoded Response
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.NotNil(t, decoded.Result)
	assert.True(t, decoded.Result.IsNull())

	var errResp Response
	require.NoError(t, json.Unmarshal([]byte(`{"protocol":{"name":"forrst","version":"1.0.0"},"id":"r","errors":[{"code":"NOT_FOUND","message":"gone"}]}`), &errResp))
	assert.Nil(t, errResp.Result)
}

func TestSerializeNullIDForUnparsedRequest(t *testing.T) {
	resp := NewError(Protocol{Name: "forrst", Version: "1.0.0"}, nil, ferrors.New(ferrors.KindParseError, "bad json"))
	out, err := Serialize(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":null`)
}

func TestAddExtensionReplacesByURN(t *testing.T) {
	id := "r"
	resp := NewSuccess(Protocol{Name: "forrst", Version: "1.0.0"}, &id, Scalar("ok"))
	resp.AddExtension("urn:cline:forrst:ext:retry", Object(map[string]Value{"allowed": Scalar(false)}))
	resp.AddExtension("urn:cline:forrst:ext:retry", Object(map[string]Value{"allowed": Scalar(true)}))
	require.Len(t, resp.Extensions, 1)
	allowed, ok := resp.Extensions[0].Data.Get("allowed")
	require.True(t, ok)
	assert.Equal(t, true, allowed.Raw())
}
