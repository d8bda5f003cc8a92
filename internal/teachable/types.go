package teachable

// CourseSummary is one entry of the paginated course listing.
type CourseSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Course is the detailed course payload, including its section tree.
type Course struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Sections []Section `json:"lecture_sections"`
}

// Section groups lectures; Position drives the on-disk ordering prefix.
type Section struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Position int          `json:"position"`
	Lectures []LectureRef `json:"lectures"`
}

// LectureRef is the shallow lecture entry inside a course payload; the full
// lecture (with attachments) requires a separate fetch.
type LectureRef struct {
	ID int64 `json:"id"`
}

// Lecture is the detailed lecture payload.
type Lecture struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Position    int          `json:"position"`
	IsPublished bool         `json:"is_published"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is one downloadable artifact of a lecture. Kind decides whether
// it is fetched; URL is typically a short-lived signed link.
type Attachment struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
	URL      string `json:"url"`
}

type coursesResponse struct {
	Courses []CourseSummary `json:"courses"`
	Meta    pageMeta        `json:"meta"`
}

type pageMeta struct {
	Page          int `json:"page"`
	NumberOfPages int `json:"number_of_pages"`
}

type courseResponse struct {
	Course Course `json:"course"`
}

type lectureResponse struct {
	Lecture Lecture `json:"lecture"`
}
