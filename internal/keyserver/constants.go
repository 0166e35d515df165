package keyserver

import "github.com/raphi011/gitks/internal/config"

// Keyserver identifies this implementation in enc.keyserver and the
// KEYSERVER marker file.
const Keyserver = "gitks"

// Local git config keys.
const (
	ConfigKeys         = "gitks.keys"
	ConfigKeysBranch   = ConfigKeys + ".branch"
	ConfigKeysDir      = ConfigKeys + ".dir"
	ConfigEncKeyserver = "enc.keyserver"
)

// Branch and directory defaults.
const (
	DefaultKeysBranch = config.DefaultKeysBranch
	DefaultKeysDir    = config.DefaultKeysDir

	TestMarker  = "test"
	FinalMarker = "final"
)

// ConfBranch is the repository configuration branch.
const ConfBranch = "__enc_internal/conf/main"

// Marker files written to the configuration branch.
const (
	MarkerKeyserver = "KEYSERVER"
	MarkerURL       = "KEYSERVER.URL"
	MarkerPath      = "KEYSERVER.PATH"
)

// Self is the marker value meaning "this same repository".
const Self = "SELF"

// SelfSentinel is accepted wherever Self is, for clone parameters.
const SelfSentinel = "__SELF_REPO__"

// TestBranch returns the test child of base.
func TestBranch(base string) string {
	return base + "/" + TestMarker
}

// FinalBranch returns the final child of base.
func FinalBranch(base string) string {
	return base + "/" + FinalMarker
}
