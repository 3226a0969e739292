package conf

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/matthewhartstonge/argon2"
)

const (
	sha256Prefix = "sha256:"
	argon2Prefix = "argon2:"
)

var (
	rePlainCredential = regexp.MustCompile(`^[a-zA-Z0-9!\$\(\)\*\+\.;<=>\[\]\^_\-\{\}@#&]+$`)
	reSha256          = regexp.MustCompile(`^[a-zA-Z0-9\+/=]+$`)
)

type credentialKind int

const (
	credentialEmpty credentialKind = iota
	credentialPlain
	credentialSha256
	credentialArgon2
)

// Credential is an API username or password.
// It can be in plain text or hashed with sha256 or argon2.
type Credential struct {
	value string
	kind  credentialKind
}

func parseCredential(in string) (Credential, error) {
	switch {
	case in == "":
		return Credential{}, nil

	case strings.HasPrefix(in, sha256Prefix):
		if !reSha256.MatchString(in[len(sha256Prefix):]) {
			return Credential{}, fmt.Errorf("sha256 credential must be base64 encoded")
		}
		return Credential{value: in, kind: credentialSha256}, nil

	case strings.HasPrefix(in, argon2Prefix):
		if _, err := argon2.Decode([]byte(in[len(argon2Prefix):])); err != nil {
			return Credential{}, fmt.Errorf("invalid argon2 hash: %w", err)
		}
		return Credential{value: in, kind: credentialArgon2}, nil

	case !rePlainCredential.MatchString(in):
		return Credential{}, fmt.Errorf("credential contains unsupported characters")
	}

	return Credential{value: in, kind: credentialPlain}, nil
}

// MarshalJSON implements json.Marshaler.
func (d Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Credential) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	c, err := parseCredential(in)
	if err != nil {
		return err
	}

	*d = c
	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *Credential) UnmarshalEnv(_ string, v string) error {
	c, err := parseCredential(v)
	if err != nil {
		return err
	}

	*d = c
	return nil
}

// GetValue returns the raw value of the credential.
func (d *Credential) GetValue() string {
	return d.value
}

// IsEmpty returns true if the credential is not configured.
func (d *Credential) IsEmpty() bool {
	return d.kind == credentialEmpty
}

// IsSha256 returns true if the credential is a sha256 hash.
func (d *Credential) IsSha256() bool {
	return d.kind == credentialSha256
}

// IsArgon2 returns true if the credential is an argon2 hash.
func (d *Credential) IsArgon2() bool {
	return d.kind == credentialArgon2
}

// IsHashed returns true if the credential is a hash.
func (d *Credential) IsHashed() bool {
	return d.kind == credentialSha256 || d.kind == credentialArgon2
}

// Check returns true if the given value matches the credential.
// An empty credential matches anything.
func (d *Credential) Check(guess string) bool {
	switch d.kind {
	case credentialEmpty:
		return true

	case credentialSha256:
		h := sha256.Sum256([]byte(guess))
		return d.value[len(sha256Prefix):] == base64.StdEncoding.EncodeToString(h[:])

	case credentialArgon2:
		ok, err := argon2.VerifyEncoded([]byte(guess), []byte(d.value[len(argon2Prefix):]))
		return ok && err == nil
	}

	return d.value == guess
}
