package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/meko-christian/mail-idler/internal/idler"
)

const sample = "From: Alice <Alice@Example.org>\r\n" +
	"To: list@example.org\r\n" +
	"Subject: Board meeting\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"See you at eight. needle\r\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCommand_ExitStatusDecidesOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   bool
	}{
		{name: "accepts", script: "cat >/dev/null; exit 0", want: true},
		{name: "rejects", script: "cat >/dev/null; exit 3", want: false},
		{name: "reads stdin", script: "grep -q needle", want: true},
		{name: "stdin mismatch", script: "grep -q haystack", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewCommand([]string{"sh", "-c", tt.script}, 5*time.Second, quietLogger())
			require.NoError(t, err)

			got, err := c.Process(context.Background(), []byte(sample))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommand_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewCommand(nil, 0, nil)
	require.Error(t, err)

	c, err := NewCommand([]string{"/nonexistent/mail-handler"}, 0, quietLogger())
	require.NoError(t, err)
	ok, err := c.Process(context.Background(), []byte(sample))
	require.Error(t, err)
	assert.False(t, ok)

	slow, err := NewCommand([]string{"sh", "-c", "sleep 5"}, 50*time.Millisecond, quietLogger())
	require.NoError(t, err)
	ok, err = slow.Process(context.Background(), []byte(sample))
	require.Error(t, err)
	assert.False(t, ok)
}

func TestSenderFilter(t *testing.T) {
	t.Parallel()

	calls := 0
	next := idler.ProcessorFunc(func(context.Context, []byte) (bool, error) {
		calls++
		return true, nil
	})

	f := NewSenderFilter([]string{" alice@example.org "}, next, quietLogger())

	ok, err := f.Process(context.Background(), []byte(sample))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	other := strings.Replace(sample, "Alice@Example.org", "mallory@example.org", 1)
	ok, err = f.Process(context.Background(), []byte(other))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)

	ok, err = f.Process(context.Background(), []byte("not a mail"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSenderFilter_DisplayNameEntry(t *testing.T) {
	t.Parallel()

	next := idler.ProcessorFunc(func(context.Context, []byte) (bool, error) { return true, nil })
	f := NewSenderFilter([]string{"Alice <ALICE@example.org>"}, next, quietLogger())

	ok, err := f.Process(context.Background(), []byte(sample))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForwarder(t *testing.T) {
	t.Parallel()

	f, err := NewForwarder(SMTP{Server: "smtp.example.org", Port: 465, Security: "ssl", Username: "bot@example.org"},
		[]string{"a@example.org", "b@example.org"}, "[Idler] ", quietLogger())
	require.NoError(t, err)

	var sent *gomail.Message
	f.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	ok, err := f.Process(context.Background(), []byte(sample))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, sent)

	assert.Equal(t, []string{"[Idler] Board meeting"}, sent.GetHeader("Subject"))
	assert.Equal(t, []string{"Alice@Example.org"}, sent.GetHeader("Reply-To"))
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, sent.GetHeader("Bcc"))

	var buf bytes.Buffer
	_, err = sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "See you at eight.")
}

func TestForwarder_SendFailureIsAnError(t *testing.T) {
	t.Parallel()

	f, err := NewForwarder(SMTP{Server: "smtp.example.org", Port: 587}, []string{"a@example.org"}, "", quietLogger())
	require.NoError(t, err)
	f.send = func(*gomail.Message) error { return errors.New("421 try later") }

	ok, err := f.Process(context.Background(), []byte(sample))
	require.Error(t, err)
	assert.False(t, ok)

	_, err = NewForwarder(SMTP{}, nil, "", nil)
	require.Error(t, err)
}
