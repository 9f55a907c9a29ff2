package common

import "github.com/nspcc-dev/neo-go/pkg/interop/native/std"

// Version is the current version of the contracts encoded as
// major*1_000_000 + minor*1_000 + patch.
const Version = 0*1_000_000 + 1*1_000 + 0

// MinUpdateVersion is the oldest version which can be updated to Version.
const MinUpdateVersion = 0*1_000_000 + 1*1_000 + 0

// Update failure messages.
const (
	ErrUpdateTooOld = "contract is too old to update"
	ErrUpdateSame   = "contract is already of this version"
)

// CheckUpdate panics if contract of the given version can not be updated to
// Version.
func CheckUpdate(from int) {
	switch {
	case from == Version:
		panic(ErrUpdateSame)
	case from < MinUpdateVersion:
		panic(ErrUpdateTooOld + ", need at least " + std.Itoa(MinUpdateVersion, 10))
	}
}
