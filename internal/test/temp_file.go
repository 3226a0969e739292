package test

import (
	"os"
	"testing"
)

// CreateTempFile creates a temporary file with given content.
func CreateTempFile(byts []byte) (string, error) {
	f, err := os.CreateTemp(os.TempDir(), "avplay-")
	if err != nil {
		return "", err
	}

	_, err = f.Write(byts)
	f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

// TempConf writes a configuration file that is removed
// when the test ends.
func TempConf(t testing.TB, content string) string {
	p, err := CreateTempFile([]byte(content))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(p) })
	return p
}
