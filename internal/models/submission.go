package models

// FileType classifies a submitted file by the archive root it came from
type FileType string

const (
	FileTypeCurrentYear  FileType = "current_year"
	FileTypePreviousYear FileType = "previous_year"
	FileTypeWhitelist    FileType = "whitelist"
)

// Language is the lexical family a source file belongs to
type Language string

const (
	LanguageC    Language = "c"
	LanguageJava Language = "java"
)

// SubmittedFile represents one source file read from a submission archive
type SubmittedFile struct {
	Path     string   `bson:"path" json:"path"`
	Owner    string   `bson:"owner" json:"owner"`
	Type     FileType `bson:"type" json:"type"`
	Language Language `bson:"language" json:"language"`
	Content  string   `bson:"-" json:"-"`
}

// JobRequest is what a producer hands to the scheduler
type JobRequest struct {
	ArchivePath   string `json:"archivePath" binding:"required"`
	FileCount     int    `json:"fileCount" binding:"gte=0"`
	NotifyAddress string `json:"notifyAddress"`
}
