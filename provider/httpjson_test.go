package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/rterrors"
)

func TestExtractStringByPathThroughArray(t *testing.T) {
	body := []byte(`{"content":[{"text":"OK"}]}`)
	got, err := extractStringByPath(body, []string{"content", "text"})
	require.NoError(t, err)
	assert.Equal(t, "OK", got)
}

func TestExtractStringByPathFlatObject(t *testing.T) {
	body := []byte(`{"choices":{"message":{"content":"hello"}}}`)
	got, err := extractStringByPath(body, []string{"choices", "message", "content"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestExtractStringByPathMissingKeyFails(t *testing.T) {
	body := []byte(`{"content":"hi"}`)
	_, err := extractStringByPath(body, []string{"missing"})
	require.Error(t, err)
	assert.Equal(t, rterrors.KindFormat, rterrors.KindOf(err))
}

func TestExtractStringByPathNonStringFails(t *testing.T) {
	body := []byte(`{"count":5}`)
	_, err := extractStringByPath(body, []string{"count"})
	require.Error(t, err)
	assert.Equal(t, rterrors.KindFormat, rterrors.KindOf(err))
}

func TestKindForStatusMapping(t *testing.T) {
	assert.Equal(t, rterrors.Kind(""), kindForStatus(200))
	assert.Equal(t, rterrors.KindHTTPRateLimit, kindForStatus(429))
	assert.Equal(t, rterrors.KindHTTPServerError, kindForStatus(503))
	assert.Equal(t, rterrors.KindHTTPUnauthorized, kindForStatus(401))
	assert.Equal(t, rterrors.KindHTTPOther, kindForStatus(418))
}
