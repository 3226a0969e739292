package confwatcher

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/test"
)

const testConf = "backends: [synth]\n"

func rewrite(t *testing.T, fpath string) {
	err := os.WriteFile(fpath, []byte(testConf+"loop: yes\n"), 0o644)
	require.NoError(t, err)
}

func expectReload(t *testing.T, w *ConfWatcher) {
	select {
	case <-w.Watch():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out")
	}
}

func expectNoReload(t *testing.T, w *ConfWatcher, d time.Duration) {
	select {
	case <-time.After(d):
	case <-w.Watch():
		t.Fatal("unexpected reload")
	}
}

func TestNoFile(t *testing.T) {
	w := &ConfWatcher{FilePath: "/nonexistent/avplay.yml"}
	err := w.Initialize()
	require.Error(t, err)
}

func TestReload(t *testing.T) {
	for _, ca := range []struct {
		name   string
		mutate func(t *testing.T, fpath string)
	}{
		{
			"write",
			rewrite,
		},
		{
			"delete and create",
			func(t *testing.T, fpath string) {
				os.Remove(fpath)
				time.Sleep(10 * time.Millisecond)
				rewrite(t, fpath)
			},
		},
		{
			"rename over",
			func(t *testing.T, fpath string) {
				tmp := fpath + ".new"
				err := os.WriteFile(tmp, []byte(testConf), 0o644)
				require.NoError(t, err)
				err = os.Rename(tmp, fpath)
				require.NoError(t, err)
			},
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			fpath := test.TempConf(t, testConf)

			w := &ConfWatcher{FilePath: fpath}
			err := w.Initialize()
			require.NoError(t, err)
			defer w.Close()

			ca.mutate(t, fpath)
			expectReload(t, w)
		})
	}
}

func TestReloadDebounce(t *testing.T) {
	fpath := test.TempConf(t, testConf)

	w := &ConfWatcher{FilePath: fpath}
	err := w.Initialize()
	require.NoError(t, err)
	defer w.Close()

	rewrite(t, fpath)
	time.Sleep(10 * time.Millisecond)
	rewrite(t, fpath)

	expectReload(t, w)
	expectNoReload(t, w, 500*time.Millisecond)
}

func TestIgnoreOtherFiles(t *testing.T) {
	fpath := test.TempConf(t, testConf)

	w := &ConfWatcher{FilePath: fpath}
	err := w.Initialize()
	require.NoError(t, err)
	defer w.Close()

	err = os.WriteFile(fpath+"-other", []byte(testConf), 0o644)
	require.NoError(t, err)
	defer os.Remove(fpath + "-other")

	expectNoReload(t, w, 300*time.Millisecond)
}

func TestSymlinkTarget(t *testing.T) {
	fpath := test.TempConf(t, testConf)

	err := os.Symlink(fpath, fpath+"-sym")
	require.NoError(t, err)
	defer os.Remove(fpath + "-sym")

	w := &ConfWatcher{FilePath: fpath + "-sym"}
	err = w.Initialize()
	require.NoError(t, err)
	defer w.Close()

	os.Remove(fpath)
	rewrite(t, fpath)

	expectReload(t, w)
}
