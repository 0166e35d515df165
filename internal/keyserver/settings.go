package keyserver

import (
	"context"

	"github.com/raphi011/gitks/internal/git"
)

// Settings is the keyserver configuration recorded in a repository.
type Settings struct {
	KeysBranch string
	KeysDir    string
	// Keyserver is the value of enc.keyserver, empty when the repository
	// was never initialised.
	Keyserver string
}

// Initialised reports whether a keyserver was registered.
func (s Settings) Initialised() bool {
	return s.Keyserver != ""
}

// LoadSettings reads the keyserver configuration of the repository g is
// bound to. Unset keys branch and directory fall back to the defaults.
func LoadSettings(ctx context.Context, g *git.Git) (Settings, error) {
	s := Settings{KeysBranch: DefaultKeysBranch, KeysDir: DefaultKeysDir}

	for _, f := range []struct {
		key string
		dst *string
	}{
		{ConfigKeysBranch, &s.KeysBranch},
		{ConfigKeysDir, &s.KeysDir},
		{ConfigEncKeyserver, &s.Keyserver},
	} {
		v, ok, err := g.GetConfig(ctx, f.key)
		if err != nil {
			return Settings{}, err
		}
		if ok {
			*f.dst = v
		}
	}
	return s, nil
}
