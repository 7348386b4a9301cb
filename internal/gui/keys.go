package gui

import (
	"mime"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"github.com/nimbus-data/nimbus-ingest/internal/models"
	"github.com/nimbus-data/nimbus-ingest/internal/navigation"
)

// navigationKey maps a fyne key to the toolkit-independent navigation key.
func navigationKey(name fyne.KeyName) navigation.Key {
	switch name {
	case fyne.KeyUp:
		return navigation.KeyUp
	case fyne.KeyDown:
		return navigation.KeyDown
	case fyne.KeyLeft:
		return navigation.KeyLeft
	case fyne.KeyRight:
		return navigation.KeyRight
	case fyne.KeyReturn, fyne.KeyEnter:
		return navigation.KeyEnter
	case fyne.KeySpace:
		return navigation.KeySpace
	case fyne.KeyDelete:
		return navigation.KeyDelete
	case fyne.KeyBackspace:
		return navigation.KeyBackspace
	case fyne.KeyEscape:
		return navigation.KeyEscape
	default:
		return navigation.KeyOther
	}
}

// pickerExtensions turns an accept list into the extension filter of the
// file dialog. MIME types contribute the extensions the system maps them to.
// An empty result means no filter.
func pickerExtensions(accept []string) []string {
	seen := make(map[string]bool)
	for _, a := range accept {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
		case strings.HasPrefix(a, "."):
			seen[a] = true
		case strings.Contains(a, "/"):
			if strings.HasSuffix(a, "/*") {
				// wildcard types cannot be expressed as extensions
				return nil
			}
			exts, _ := mime.ExtensionsByType(a)
			for _, e := range exts {
				seen[strings.ToLower(e)] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// statusText is the status column of a staged file row.
func statusText(st models.UploadStatus) string {
	switch st.Stage {
	case models.StageUploading:
		return "Uploading…"
	case models.StageSuccess:
		return "Uploaded"
	case models.StageError:
		if st.ErrorMessage != "" {
			return st.ErrorMessage
		}
		return "Failed"
	default:
		return ""
	}
}

func statusIcon(st models.UploadStatus) fyne.Resource {
	switch st.Stage {
	case models.StageSuccess:
		return theme.ConfirmIcon()
	case models.StageError:
		return theme.ErrorIcon()
	default:
		return theme.UploadIcon()
	}
}
