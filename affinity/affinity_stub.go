//go:build !linux && !windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import (
	"github.com/samber/oops"

	"github.com/momentics/hioload-mina/api"
)

func setAffinityPlatform(cpuID int) error {
	return oops.In("affinity").With("cpu", cpuID).Wrapf(api.ErrNotSupported, "cpu affinity")
}
