// Package models defines the data types shared by the ingest packages.
package models

import (
	"io"
	"path/filepath"
	"strings"
)

// Stage is the upload stage of one staged file.
type Stage string

const (
	StageUploading Stage = "uploading"
	StageSuccess   Stage = "success"
	StageError     Stage = "error"
)

// IsTerminal reports whether the stage is settled.
func (s Stage) IsTerminal() bool {
	return s == StageSuccess || s == StageError
}

// Candidate is a file offered by a drop, the picker or the command line,
// before any policy check.
type Candidate struct {
	Path        string
	Name        string
	Size        int64
	ContentType string

	// Open returns a fresh reader over the file content
	Open func() (io.ReadCloser, error)
}

// Ext returns the lower-cased extension including the dot, or "".
func (c Candidate) Ext() string {
	return strings.ToLower(filepath.Ext(c.Name))
}

// StagedFile is a candidate that was accepted into the selection.
type StagedFile struct {
	Token string // opaque, stable for the life of the staged file
	Candidate
}

// UploadStatus mirrors one StagedFile.
type UploadStatus struct {
	Token        string
	Stage        Stage
	ErrorMessage string // set only when Stage == StageError
	Detail       string // underlying error text, for logs and tooltips
}

// Rejection codes produced by the selection policy
const (
	CodeInvalidType  = "file-invalid-type"
	CodeTooLarge     = "file-too-large"
	CodeTooSmall     = "file-too-small"
	CodeTooManyFiles = "too-many-files"
)

// Rejection is one reason a candidate was refused.
type Rejection struct {
	Code    string
	Message string
}

// FileRejection groups the rejection reasons of one candidate, in the order found.
type FileRejection struct {
	File    Candidate
	Reasons []Rejection
}

// User identifies the submitting user for extraction.
type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
}

// SlotTarget is a write destination for a direct byte transfer.
type SlotTarget struct {
	URL      string
	Method   string            // defaults to PUT
	Headers  map[string]string // extra headers the issuer requires
	Provider string            // "remote", "s3", "azure"
}

// Extraction is the server-side parse result of a transferred file.
type Extraction struct {
	DatasetID string   `json:"dataset_id"`
	Columns   []string `json:"columns"`
}

// FileRecord describes an uploaded file for the metadata registrar.
type FileRecord struct {
	Ext         string `json:"fileExt"`
	Name        string `json:"fileName"`
	Size        int64  `json:"fileSize"`
	ContentType string `json:"fileType"`
	URI         string `json:"fileURI"`
}

// IngestionResult is produced for each file whose pipeline succeeded.
type IngestionResult struct {
	Token      string
	SourceName string
	FileName   string // deduplicated name used for the transfer
	FileID     string
	DatasetID  string
	Columns    []string
}
