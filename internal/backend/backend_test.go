package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/test"
)

type dummyBackend struct {
	schemes []string
	err     error
	opened  []string
}

func (b *dummyBackend) Schemes() []string {
	return b.schemes
}

func (b *dummyBackend) Open(_ context.Context, u *URL, _ Options) (*av.Source, error) {
	b.opened = append(b.opened, u.Raw)
	if b.err != nil {
		return nil, b.err
	}
	return &av.Source{}, nil
}

func TestParseURL(t *testing.T) {
	for _, ca := range []struct {
		raw    string
		scheme string
		path   string
	}{
		{"/tmp/video.ts", "file", "/tmp/video.ts"},
		{"video.mp4", "file", "video.mp4"},
		{`C:\video.mp4`, "file", `C:\video.mp4`},
		{"file:///tmp/video.ts", "file", "/tmp/video.ts"},
		{"SRT://host:9000?streamid=read:test", "srt", ""},
		{"synth://?duration=2s", "synth", ""},
	} {
		t.Run(ca.raw, func(t *testing.T) {
			u, err := ParseURL(ca.raw)
			require.NoError(t, err)
			require.Equal(t, ca.scheme, u.Scheme)
			if ca.path != "" {
				require.Equal(t, ca.path, u.FilePath())
			}
		})
	}
}

func TestRegistryFallback(t *testing.T) {
	failing := &dummyBackend{schemes: []string{"file"}, err: errors.New("not a TS file")}
	other := &dummyBackend{schemes: []string{"synth"}}
	wildcard := &dummyBackend{}

	r := &Registry{}
	r.Register("failing", failing)
	r.Register("other", other)
	r.Register("any", wildcard)
	require.Equal(t, []string{"failing", "other", "any"}, r.Names())

	_, name, err := r.Open(context.Background(), "/tmp/video.mkv", Options{Parent: test.NilLogger})
	require.NoError(t, err)
	require.Equal(t, "any", name)
	require.Equal(t, []string{"/tmp/video.mkv"}, failing.opened)
	require.Empty(t, other.opened)
}

func TestRegistryErrors(t *testing.T) {
	r := &Registry{}
	r.Register("synth", &dummyBackend{schemes: []string{"synth"}})

	_, _, err := r.Open(context.Background(), "rtsp://host/path", Options{})
	require.ErrorIs(t, err, ErrUnsupportedURL)

	errA := errors.New("a")
	errB := errors.New("b")
	r = &Registry{}
	r.Register("a", &dummyBackend{err: errA})
	r.Register("b", &dummyBackend{err: errB})

	_, _, err = r.Open(context.Background(), "rtsp://host/path", Options{})
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
}
