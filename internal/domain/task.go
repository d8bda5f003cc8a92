package domain

// AttachmentKind identifies the type of content behind an attachment.
type AttachmentKind string

const (
	KindVideo    AttachmentKind = "video"
	KindAudio    AttachmentKind = "audio"
	KindImage    AttachmentKind = "image"
	KindFile     AttachmentKind = "file"
	KindPDF      AttachmentKind = "pdf"
	KindPDFEmbed AttachmentKind = "pdf_embed"
	KindText     AttachmentKind = "text"
	KindQuiz     AttachmentKind = "quiz"
)

// DownloadKinds are the attachment kinds that carry a downloadable file.
var DownloadKinds = []AttachmentKind{KindVideo, KindAudio, KindImage, KindFile, KindPDF, KindPDFEmbed}

// DownloadTask describes one attachment to fetch. It is immutable after
// creation; the attachment ID is its identity. RelPath is derived purely from
// that identity plus the attachment's position in the course tree, so no two
// distinct tasks in a run resolve to the same destination.
type DownloadTask struct {
	AttachmentID int64          `json:"attachment_id"`
	CourseID     int64          `json:"course_id"`
	LectureID    int64          `json:"lecture_id"`
	Name         string         `json:"name"`
	Kind         AttachmentKind `json:"kind"`
	URL          string         `json:"url"`
	RelPath      string         `json:"rel_path"`
	ExpectedSize int64          `json:"expected_size"` // 0 means unknown
}
