package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// lastSuffix is the last millisecond suffix handed out in this process.
var lastSuffix atomic.Int64

// UniqueName returns "<stem>_<unixmillis>.<ext>", or "<stem>_<unixmillis>"
// when name has no extension. Suffixes strictly increase within the
// process, so two uploads of the same name in the same millisecond still
// get distinct transfer targets. A nil now uses time.Now.
func UniqueName(name string, now func() time.Time) string {
	if now == nil {
		now = time.Now
	}

	ms := now().UnixMilli()
	for {
		last := lastSuffix.Load()
		next := ms
		if next <= last {
			next = last + 1
		}
		if lastSuffix.CompareAndSwap(last, next) {
			ms = next
			break
		}
	}

	stem, ext := splitExt(name)
	if ext == "" {
		return fmt.Sprintf("%s_%d", stem, ms)
	}
	return fmt.Sprintf("%s_%d.%s", stem, ms, ext)
}

// Ext returns the extension of name without the dot, or "".
func Ext(name string) string {
	_, ext := splitExt(name)
	return ext
}

func splitExt(name string) (stem, ext string) {
	dotExt := filepath.Ext(name)
	stem = strings.TrimSuffix(name, dotExt)
	if stem == "" || dotExt == "." {
		// ".env" and "name." have no usable extension
		return name, ""
	}
	return stem, strings.TrimPrefix(dotExt, ".")
}
