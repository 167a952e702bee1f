package models

import "time"

// VersionInfo describes one committed revision of a stored artifact.
type VersionInfo struct {
	Version  string    `json:"version"` // v<YYYYMMDD_HHMMSS>, suffixed _1, _2 on collision
	Hash     string    `json:"hash"`    // sha256 of the revision content
	Date     time.Time `json:"date"`
	Message  string    `json:"message"`
	Filename string    `json:"filename"` // revision file inside .versions/
}

// DocumentRecord points at a stored artifact and its latest revision.
type DocumentRecord struct {
	Path      string      `json:"path"` // relative to the project directory
	ProjectID string      `json:"project_id"`
	Latest    VersionInfo `json:"latest"`
	Revisions int         `json:"revisions"`
}
