package idler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connected(t *testing.T, srv *fakeServer, proc Processor) *Idler {
	t.Helper()
	i := newTestIdler(srv, proc)
	require.NoError(t, i.sess.Connect(context.Background()))
	return i
}

func TestFetch_ProcessorCalledOncePerMessage(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	for _, raw := range []string{"one", "two", "three", "four"} {
		srv.add(DefaultSource, raw)
	}
	proc := &recordingProcessor{decide: func(raw string) (bool, error) {
		return raw == "two" || raw == "four", nil
	}}

	i := connected(t, srv, proc)
	n, err := i.fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three", "four"}, proc.calls())
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"one", "three"}, srv.contents(DefaultSource))
	assert.Equal(t, []string{"two", "four"}, srv.contents(DefaultDestination))
	assert.Equal(t, 1, srv.count("expunge"))
}

func TestFetch_EmptyFolderReturnsImmediately(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	proc := &recordingProcessor{}

	i := connected(t, srv, proc)
	n, err := i.fetch(context.Background())
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Empty(t, proc.calls())
	assert.Zero(t, srv.count("fetch"))
	assert.Zero(t, srv.count("expunge"))
}

func TestFetch_SkipsMessagesWithoutContent(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	srv.add(DefaultSource, "a")
	gone := srv.add(DefaultSource, "b")
	srv.missing[gone] = true
	proc := &recordingProcessor{}

	i := connected(t, srv, proc)
	n, err := i.fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, proc.calls())
	assert.Equal(t, []string{"b"}, srv.contents(DefaultSource))
}

func TestFetch_ProcessorErrorLeavesMessageInPlace(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	srv.add(DefaultSource, "bad")
	srv.add(DefaultSource, "good")
	proc := &recordingProcessor{decide: func(raw string) (bool, error) {
		if raw == "bad" {
			return false, errors.New("smtp down")
		}
		return true, nil
	}}

	i := connected(t, srv, proc)
	n, err := i.fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"bad"}, srv.contents(DefaultSource))
	assert.Equal(t, []string{"good"}, srv.contents(DefaultDestination))
}

func TestFetch_DefaultProcessorFailsLoudly(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	srv.add(DefaultSource, "a")

	i := connected(t, srv, nil)
	_, err := i.fetch(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Equal(t, "process", ferr.Op)
	assert.Equal(t, []string{"a"}, srv.contents(DefaultSource))
	assert.Zero(t, srv.count("copy"))
}

func TestFetch_ErrorKeepsEarlierRelocations(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	first := srv.add(DefaultSource, "first")
	srv.add(DefaultSource, "second")
	srv.add(DefaultSource, "third")
	srv.failNext("copy", nil, errBoom)

	i := connected(t, srv, &recordingProcessor{})
	n, err := i.fetch(context.Background())

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "copy", ferr.Op)
	assert.Equal(t, 1, ferr.Relocated)
	assert.Equal(t, 1, n)

	// first is copied and flagged, the cycle stopped before expunge
	assert.Equal(t, []string{"first"}, srv.contents(DefaultDestination))
	assert.True(t, srv.isDeleted(DefaultSource, first))
	assert.Zero(t, srv.count("expunge"))

	// the next successful cycle does not process first again
	proc := &recordingProcessor{}
	i.proc = proc
	n, err = i.fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"second", "third"}, proc.calls())
	assert.Empty(t, srv.contents(DefaultSource))
	assert.Equal(t, []string{"first", "second", "third"}, srv.contents(DefaultDestination))
}

func TestFetch_ProtocolErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		failing string
		op      string
	}{
		{failing: "search", op: "search"},
		{failing: "fetch", op: "fetch"},
		{failing: "delete", op: "mark deleted"},
		{failing: "expunge", op: "expunge"},
	}

	for _, tt := range tests {
		t.Run(tt.failing, func(t *testing.T) {
			t.Parallel()

			srv := newFakeServer()
			srv.add(DefaultSource, "a")
			srv.failNext(tt.failing, errBoom)

			i := connected(t, srv, &recordingProcessor{})
			_, err := i.fetch(context.Background())

			var ferr *FetchError
			require.ErrorAs(t, err, &ferr)
			assert.ErrorIs(t, err, errBoom)
			assert.Equal(t, tt.op, ferr.Op)
			assert.NotEmpty(t, i.Status().LastError)
		})
	}
}
