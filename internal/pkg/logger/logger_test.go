package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLines(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(&bytes.Buffer{})
		SetLevel(INFO)
	})
	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]string {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLogRedactsSecretsAndEmails(t *testing.T) {
	buf := captureLines(t)

	Warn("store tier failed",
		"tier", "postgres",
		"err", errors.New("dial tcp: refused"),
		"api_key", "sk-live-123",
		"url", "https://api.mailshake.com/2017-04-01/activity/sent?apiKey=secret&campaignID=1",
		"note", "lead jane.doe@example.com replied",
	)

	entry := lastEntry(t, buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "dial tcp: refused", entry["err"])
	assert.Equal(t, "***", entry["api_key"])
	assert.NotContains(t, entry["url"], "secret")
	assert.Contains(t, entry["note"], "ja***@example.com")
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLines(t)
	SetLevel(WARN)

	Info("quiet")
	assert.Empty(t, buf.String())

	Error("loud")
	assert.Equal(t, "loud", lastEntry(t, buf)["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactQueryParam(t *testing.T) {
	assert.Equal(t,
		"https://x.test/y?apiKey=REDACTED&campaignID=1",
		RedactQueryParam("https://x.test/y?apiKey=abc&campaignID=1", "apiKey"))
	assert.Equal(t, "https://x.test/y?a=1", RedactQueryParam("https://x.test/y?a=1", "apiKey"))
}

func TestEntryTimeIsUTCSeconds(t *testing.T) {
	buf := captureLines(t)

	Info("tick")
	stamp := lastEntry(t, buf)["time"]
	at, err := time.Parse(timeLayout, stamp)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stamp, "Z"))
	assert.WithinDuration(t, time.Now(), at, 2*time.Second)
}
