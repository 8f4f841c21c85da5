package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvent = `{
	"protocol": "http",
	"ip": "1.2.3.4",
	"port": "80",
	"event_type": "leak",
	"geoip": {"country_name": "Germany", "city": "Berlin"},
	"ssl": {"enabled": false}
}`

func TestField_Nested(t *testing.T) {
	r := New([]byte(sampleEvent))

	res, ok := r.Field("geoip.country_name")
	require.True(t, ok)
	assert.Equal(t, "Germany", res.String())
}

func TestField_Missing(t *testing.T) {
	r := New([]byte(sampleEvent))

	_, ok := r.Field("geoip.asn.name")
	assert.False(t, ok)
}

func TestFieldOr(t *testing.T) {
	r := New([]byte(sampleEvent))

	assert.Equal(t, "http", r.FieldOr("protocol", "none"))
	assert.Equal(t, "none", r.FieldOr("no.such.path", "none"))
}

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"http", `{"protocol":"http","ip":"1.2.3.4","port":"80"}`, "http://1.2.3.4:80"},
		{"https", `{"protocol":"https","ip":"1.2.3.4","port":"443"}`, "https://1.2.3.4:443"},
		{"numeric_port", `{"protocol":"http","ip":"1.2.3.4","port":80}`, "http://1.2.3.4:80"},
		{"non_http", `{"protocol":"ssh","ip":"1.2.3.4","port":"22"}`, ""},
		{"missing_ip", `{"protocol":"http","port":"80"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New([]byte(tt.raw)).URL())
		})
	}
}

func TestProject_DefaultCollapsesToURL(t *testing.T) {
	r := New([]byte(sampleEvent))

	assert.Equal(t, "http://1.2.3.4:80", r.Project(nil))
	assert.Equal(t, "http://1.2.3.4:80", r.Project([]string{"protocol", "ip", "port"}))
}

func TestProject_ExplicitFields(t *testing.T) {
	r := New([]byte(sampleEvent))

	out := r.Project([]string{"ip", "geoip.city", "missing"})
	assert.Equal(t, "ip: 1.2.3.4, geoip.city: Berlin, missing: N/A", out)
}

func TestProject_DefaultFieldsNonHTTP(t *testing.T) {
	r := New([]byte(`{"protocol":"ssh","ip":"1.2.3.4","port":"22"}`))

	out := r.Project(nil)
	assert.Equal(t, "protocol: ssh, ip: 1.2.3.4, port: 22", out)
}

func TestFields_ListsSortedLeafPaths(t *testing.T) {
	r := New([]byte(sampleEvent))

	fields := r.Fields()
	assert.Equal(t, []string{
		"event_type",
		"geoip.city",
		"geoip.country_name",
		"ip",
		"port",
		"protocol",
		"ssl.enabled",
	}, fields)
}

func TestFields_NonObject(t *testing.T) {
	r := New([]byte(`"just a string"`))
	assert.Empty(t, r.Fields())
}
