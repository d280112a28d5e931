package base

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_SetsTimeout(t *testing.T) {
	c := NewClient(5*time.Second, false, nil)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestNewClient_InsecureSkipVerifyConfiguresTLS(t *testing.T) {
	c := NewClient(time.Second, true, nil)
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestNewClient_NoInsecureSkipVerifyLeavesTLSConfigNil(t *testing.T) {
	c := NewClient(time.Second, false, nil)
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Nil(t, transport.TLSClientConfig)
}

func TestNewClient_ProxyURLConfiguresTransportProxy(t *testing.T) {
	proxy, err := url.Parse("http://127.0.0.1:8080")
	require.NoError(t, err)
	c := NewClient(time.Second, false, proxy)
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.Proxy)

	resolved, err := transport.Proxy(&http.Request{})
	require.NoError(t, err)
	assert.Equal(t, proxy.String(), resolved.String())
}
