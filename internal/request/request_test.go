package request

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/uptrends/internal/registry"
)

var (
	creds = registry.Credentials{User: "u", Password: "p"}
	today = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
)

func TestBuild_ResolvesTokensAndKeepsLiterals(t *testing.T) {
	d, err := Build("", "probegroups/0123456789abcdef0123456789abcdef/Alerts", map[string]string{
		"Start":  "first_day_of_previous_month",
		"End":    "yesterday",
		"Period": "Custom",
		"Month":  "current_month",
	}, creds, today)
	require.NoError(t, err)

	assert.Equal(t, "https://api.uptrends.com/v3/probegroups/0123456789abcdef0123456789abcdef/Alerts", d.URL)
	assert.Equal(t, map[string]string{
		"Start":  "2024/02/01",
		"End":    "2024/03/14",
		"Period": "Custom",
		"Month":  "03",
		"format": "json",
	}, d.Params())
	assert.Equal(t, creds, d.Credentials)
}

func TestBuild_FormatCannotBeOverridden(t *testing.T) {
	d, err := Build("", "probes", map[string]string{"format": "xml"}, creds, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"json"}, d.Query["format"])
}

func TestBuild_NoParameters(t *testing.T) {
	d, err := Build("", "probes", nil, creds, today)
	require.NoError(t, err)
	assert.Equal(t, "https://api.uptrends.com/v3/probes?format=json", d.String())
}

func TestBuild_CustomBaseURL(t *testing.T) {
	d, err := Build("http://127.0.0.1:9999/v3/", "/probes", nil, creds, today)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/v3/probes", d.URL)

	d, err = Build("http://127.0.0.1:9999/v3", "probes", nil, creds, today)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/v3/probes", d.URL)
}

func TestBuild_EncodesQuery(t *testing.T) {
	d, err := Build("", "probes", map[string]string{"Start": "today", "Name": "a b&c"}, creds, today)
	require.NoError(t, err)
	assert.Equal(t, "https://api.uptrends.com/v3/probes?Name=a+b%26c&Start=2024%2F03%2F15&format=json", d.String())
}

func TestBuild_EmptyParameterName(t *testing.T) {
	_, err := Build("", "probes", map[string]string{"": "x"}, creds, today)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrInvalidConfig))
}

func TestForOperation_DatesFollowReferenceDay(t *testing.T) {
	op, err := registry.NewOperation("daily", "probes", map[string]string{"Start": "today"}, "")
	require.NoError(t, err)

	first, err := ForOperation("", op, creds, today)
	require.NoError(t, err)
	second, err := ForOperation("", op, creds, today.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "2024/03/15", first.Params()["Start"])
	assert.Equal(t, "2024/03/16", second.Params()["Start"])
}
