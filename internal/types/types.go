package types

// Recognized spreadsheet media types.
const (
	MediaTypeXLS  = "application/vnd.ms-excel"
	MediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MaxUploadSize is the largest file the service accepts (10 MiB).
const MaxUploadSize int64 = 10 * 1024 * 1024

// HeaderField is one user-defined element of the generated <HEADER> block.
type HeaderField struct {
	TagName  string `json:"tagName"`
	TagValue string `json:"tagValue"`
	IsValid  bool   `json:"-"`
}

// Empty reports whether both name and value are blank.
func (f HeaderField) Empty() bool {
	return f.TagName == "" && f.TagValue == ""
}

type SelectedFile struct {
	Name      string
	Size      int64
	MediaType string
	Path      string
	Content   []byte
}

type ConversionRequest struct {
	File   SelectedFile
	Fields []HeaderField
}

type ConversionResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SheetSummary describes a workbook as read locally before upload.
type SheetSummary struct {
	SheetName string
	// HeaderRow is the row the service reads column names from.
	HeaderRow int
	// DetectedHeader is the row that looks most like a header, or -1.
	DetectedHeader int
	Columns        []string
	Elements       []string
	Rows           int
}

// HeaderMismatch reports whether the labels appear below the row the
// service will use.
func (s SheetSummary) HeaderMismatch() bool {
	return s.DetectedHeader > s.HeaderRow
}
