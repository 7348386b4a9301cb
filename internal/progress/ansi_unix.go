//go:build !windows

package progress

import "os"

// enableANSI is a no-op; Unix terminals handle ANSI natively.
func enableANSI(f *os.File) {}
