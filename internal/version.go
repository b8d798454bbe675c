// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package internal

import (
	"fmt"
)

var (
	commitVersion string = "v0.4.0" // Should be updated during build
	commitSHA     string = ""       // Filled in during build
)

// GetVersion returns the version string used in the X-Ritcher-Version
// header and the health endpoint.
func GetVersion() string {
	if commitSHA != "" {
		return fmt.Sprintf("%s+%s", commitVersion, commitSHA)
	}
	return commitVersion
}

// PrintVersion prints the version to stdout.
func PrintVersion() {
	fmt.Printf("%s\n", GetVersion())
}
