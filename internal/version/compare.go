package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
)

// CheckStateCompatibility reports whether a state file written by writtenBy can be loaded by
// the running build.
//
//   - Development builds and files without a version are always accepted
//   - Major versions must match
//   - A file written by a newer minor release is rejected, it may carry fields this build drops
//   - Patch versions never matter
func CheckStateCompatibility(running, writtenBy string) error {
	running = strings.TrimPrefix(running, "v")
	writtenBy = strings.TrimPrefix(writtenBy, "v")

	if running == "" || writtenBy == "" || running == devVersion || writtenBy == devVersion {
		return nil
	}

	current, err := semver.NewVersion(running)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid build version %q", running)
	}

	saved, err := semver.NewVersion(writtenBy)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStateFileFailed, err, "invalid state file version %q", writtenBy)
	}

	if current.Major() != saved.Major() {
		return errors.Newf(errors.ErrCodeStateFileFailed,
			"state file was written by %d.x.x, this build is %d.x.x", saved.Major(), current.Major())
	}

	if saved.Minor() > current.Minor() {
		return errors.Newf(errors.ErrCodeStateFileFailed,
			"state file was written by newer release %s, this build is %s", saved, current)
	}

	return nil
}
