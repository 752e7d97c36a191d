package models

// Export is an export job as returned by the API.
type Export struct {
	ID         string           `json:"id"`
	EventID    string           `json:"eventId"`
	Type       string           `json:"type"`
	Format     string           `json:"format"`
	Status     string           `json:"status"`
	Processing ExportProcessing `json:"processing"`
	FileInfo   *ExportFileInfo  `json:"fileInfo,omitempty"`
	Downloads  ExportDownloads  `json:"downloads"`
	CreatedAt  Timestamp        `json:"createdAt"`
	UpdatedAt  Timestamp        `json:"updatedAt"`
}

// ExportProcessing reports worker progress.
type ExportProcessing struct {
	StartedAt   *Timestamp `json:"startedAt,omitempty"`
	CompletedAt *Timestamp `json:"completedAt,omitempty"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
}

// ExportFileInfo describes the rendered file of a completed export.
type ExportFileInfo struct {
	Filename        string `json:"filename"`
	Size            int64  `json:"size"`
	MIMEType        string `json:"mimeType"`
	URL             string `json:"url"`
	StorageProvider string `json:"storageProvider"`
}

// ExportDownloads counts downloads of an export.
type ExportDownloads struct {
	Total          int        `json:"total"`
	LastDownloaded *Timestamp `json:"lastDownloaded,omitempty"`
}

// ExportResponse wraps a single export.
type ExportResponse struct {
	Message string `json:"message,omitempty"`
	Export  Export `json:"export"`
}

// ExportList wraps an export listing.
type ExportList struct {
	Exports []Export `json:"exports"`
}

// UploadedFile describes a stored asset.
type UploadedFile struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MIMEType     string `json:"mimetype"`
	URL          string `json:"url"`
}

// UploadResponse lists the files stored by an upload.
type UploadResponse struct {
	Message string         `json:"message"`
	Files   []UploadedFile `json:"files"`
}
