// Package policy implements the selection constraints applied to every
// dropped or picked batch before anything is staged.
package policy

import (
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nimbus-data/nimbus-ingest/internal/constants"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Matcher accepts a file by MIME type or by extension.
//
// A matcher starting with "." is an extension (".csv"). Anything else is a
// MIME type, optionally with a wildcard subtype ("text/*").
type Matcher string

// Match reports whether the candidate satisfies the matcher.
func (m Matcher) Match(c models.Candidate) bool {
	pattern := strings.ToLower(strings.TrimSpace(string(m)))
	if pattern == "" {
		return false
	}

	if strings.HasPrefix(pattern, ".") {
		return c.Ext() == pattern
	}

	contentType := strings.ToLower(c.ContentType)
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if contentType == "" {
		return false
	}

	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(contentType, prefix+"/")
	}
	return contentType == pattern
}

// Policy is the read-only selection configuration.
type Policy struct {
	Accepted       []Matcher
	MaxFiles       int
	MaxSizeBytes   int64
	MinSizeBytes   int64 // 0 accepts empty files
	AllowMultiple  bool
	ReselectOnFull bool
}

// Option modifies a Policy under construction.
type Option func(*Policy)

// WithAccepted replaces the accepted matchers.
func WithAccepted(matchers ...string) Option {
	return func(p *Policy) {
		p.Accepted = p.Accepted[:0]
		for _, m := range matchers {
			if m = strings.TrimSpace(m); m != "" {
				p.Accepted = append(p.Accepted, Matcher(m))
			}
		}
	}
}

// WithMaxFiles sets the staged file limit.
func WithMaxFiles(n int) Option {
	return func(p *Policy) { p.MaxFiles = n }
}

// WithMaxSize sets the largest accepted file size in bytes.
func WithMaxSize(n int64) Option {
	return func(p *Policy) { p.MaxSizeBytes = n }
}

// WithMinSize sets the smallest accepted file size in bytes.
func WithMinSize(n int64) Option {
	return func(p *Policy) { p.MinSizeBytes = n }
}

// WithMultiple allows more than one file per batch.
func WithMultiple(allow bool) Option {
	return func(p *Policy) { p.AllowMultiple = allow }
}

// WithReselect makes every new batch replace the staged list.
func WithReselect(reselect bool) Option {
	return func(p *Policy) { p.ReselectOnFull = reselect }
}

// Default returns the CSV, single-file, 4 MiB policy.
func Default() Policy {
	return Policy{
		Accepted:     []Matcher{constants.DefaultAcceptedMIME, constants.DefaultAcceptedExt},
		MaxFiles:     constants.DefaultMaxFiles,
		MaxSizeBytes: constants.DefaultMaxSizeBytes,
	}.Normalize()
}

// New builds a policy from the defaults and the given options.
func New(opts ...Option) Policy {
	p := Default()
	p.Accepted = append([]Matcher(nil), p.Accepted...)
	for _, opt := range opts {
		opt(&p)
	}
	return p.Normalize()
}

// Normalize clamps limits and applies the single-file rule: MaxFiles == 1
// disables multiple selection.
func (p Policy) Normalize() Policy {
	if p.MaxFiles < 1 {
		p.MaxFiles = constants.DefaultMaxFiles
	}
	if p.MaxSizeBytes < 1 {
		p.MaxSizeBytes = constants.DefaultMaxSizeBytes
	}
	if p.MinSizeBytes < 0 {
		p.MinSizeBytes = 0
	}
	if p.MaxFiles == 1 {
		p.AllowMultiple = false
	}
	return p
}

// ReplaceOnSelect reports whether a new batch replaces the staged list
// instead of appending to it.
func (p Policy) ReplaceOnSelect() bool {
	return !p.AllowMultiple || p.MaxFiles == 1 || p.ReselectOnFull
}

// AcceptList returns the matchers as strings, for display.
func (p Policy) AcceptList() []string {
	out := make([]string, len(p.Accepted))
	for i, m := range p.Accepted {
		out[i] = string(m)
	}
	return out
}

// TooLargeMessage is the notice shown when a file exceeds MaxSizeBytes.
func (p Policy) TooLargeMessage() string {
	return fmt.Sprintf("File is too large. Max size is %s", humanize.IBytes(uint64(p.MaxSizeBytes)))
}

func (p Policy) invalidTypeMessage() string {
	list := p.AcceptList()
	if len(list) == 1 {
		return "File type must be " + list[0]
	}
	return "File type must be one of " + strings.Join(list, ", ")
}

func (p Policy) acceptsType(c models.Candidate) bool {
	if len(p.Accepted) == 0 {
		return true
	}
	for _, m := range p.Accepted {
		if m.Match(c) {
			return true
		}
	}
	return false
}

// Accepts returns the reasons the candidate fails the policy, in check
// order. An empty result means the candidate is acceptable.
func (p Policy) Accepts(c models.Candidate) []models.Rejection {
	var reasons []models.Rejection

	if !p.acceptsType(c) {
		reasons = append(reasons, models.Rejection{
			Code:    models.CodeInvalidType,
			Message: p.invalidTypeMessage(),
		})
	}

	switch {
	case c.Size > p.MaxSizeBytes:
		reasons = append(reasons, models.Rejection{
			Code:    models.CodeTooLarge,
			Message: p.TooLargeMessage(),
		})
	case c.Size < p.MinSizeBytes:
		reasons = append(reasons, models.Rejection{
			Code:    models.CodeTooSmall,
			Message: fmt.Sprintf("File is too small. Min size is %s", humanize.IBytes(uint64(p.MinSizeBytes))),
		})
	}

	return reasons
}

// Check splits a batch into accepted candidates and rejected ones.
//
// When multiple selection is off, a batch of more than one file is rejected
// as a whole with too-many-files. Count limits against already staged files
// are not applied here; the selection drops the overflow.
func (p Policy) Check(batch []models.Candidate) ([]models.Candidate, []models.FileRejection) {
	var accepted []models.Candidate
	var rejected []models.FileRejection

	tooMany := !p.AllowMultiple && len(batch) > 1

	for _, c := range batch {
		reasons := p.Accepts(c)
		if tooMany {
			reasons = append(reasons, models.Rejection{
				Code:    models.CodeTooManyFiles,
				Message: "Too many files",
			})
		}
		if len(reasons) > 0 {
			rejected = append(rejected, models.FileRejection{File: c, Reasons: reasons})
			continue
		}
		accepted = append(accepted, c)
	}

	return accepted, rejected
}

// Notice picks the single user-visible message for a batch's rejections.
// Only the first reason of each rejected file counts. A file whose first
// reason is its size wins; otherwise the first file's first reason is used.
func (p Policy) Notice(rejected []models.FileRejection) (string, bool) {
	for _, r := range rejected {
		if len(r.Reasons) > 0 && r.Reasons[0].Code == models.CodeTooLarge {
			return p.TooLargeMessage(), true
		}
	}
	for _, r := range rejected {
		if len(r.Reasons) > 0 && r.Reasons[0].Message != "" {
			return r.Reasons[0].Message, true
		}
	}
	return "", false
}
