package producer

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const maxFilenameLength = 255

var unsafeChars = regexp.MustCompile(`[\\/*?:"><|]`)

// SanitizeFilename strips characters that are unsafe in filenames and
// enforces a length cap.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ",", "")
	name = strings.ReplaceAll(name, "_-_", "-")
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

// CourseDir names a course's directory from its ID and name.
func CourseDir(courseID int64, courseName string) string {
	return fmt.Sprintf("%d - %s", courseID, SanitizeFilename(courseName))
}

// AttachmentPath derives the destination path of an attachment relative to
// the output root. It is a pure function of the attachment's identity and
// position, so no two distinct attachments in a run collide: the attachment
// ID alone makes the name unique.
func AttachmentPath(courseDir string, sectionPos, lecturePos, attachmentPos int, attachmentID int64, name string) string {
	filename := fmt.Sprintf("%02d_%02d_%02d_%d_%s",
		sectionPos, lecturePos, attachmentPos, attachmentID, SanitizeFilename(name))
	return path.Join(courseDir, filename)
}
