package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursefetch/coursefetch/internal/domain"
	"github.com/coursefetch/coursefetch/internal/metrics"
	"github.com/coursefetch/coursefetch/internal/queue"
	"github.com/coursefetch/coursefetch/internal/teachable"
	"github.com/coursefetch/coursefetch/internal/validation"
)

// Walker discovers download tasks by walking course trees: course ->
// sections -> lectures -> attachments. Tasks are enqueued as soon as each
// lecture is fetched; the walker never waits for a whole course tree before
// the workers can start.
type Walker struct {
	client *teachable.Client
	queue  *queue.TaskQueue
	kinds  map[domain.AttachmentKind]bool
}

func NewWalker(client *teachable.Client, q *queue.TaskQueue, kinds []domain.AttachmentKind) *Walker {
	kindSet := make(map[domain.AttachmentKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	return &Walker{client: client, queue: q, kinds: kindSet}
}

// Run walks the given courses (all courses when none are given) and closes
// the queue once every attachment has been discovered. Per-course errors are
// logged and isolated; they never abort the remaining courses.
func (w *Walker) Run(ctx context.Context, courseIDs []int64) error {
	defer w.queue.Close()

	if len(courseIDs) == 0 {
		summaries, err := w.client.ListCourses(ctx)
		if err != nil {
			return fmt.Errorf("discover courses: %w", err)
		}
		for _, s := range summaries {
			courseIDs = append(courseIDs, s.ID)
		}
	}

	for _, courseID := range courseIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.walkCourse(ctx, courseID); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("course discovery failed", "course_id", courseID, "error", err)
		}
	}

	return nil
}

func (w *Walker) walkCourse(ctx context.Context, courseID int64) error {
	course, err := w.client.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	slog.Info("processing course", "course_id", course.ID, "name", course.Name, "sections", len(course.Sections))
	courseDir := CourseDir(course.ID, course.Name)

	for _, section := range course.Sections {
		for _, ref := range section.Lectures {
			if err := ctx.Err(); err != nil {
				return err
			}

			lecture, err := w.client.GetLecture(ctx, courseID, ref.ID)
			if err != nil {
				slog.Error("lecture fetch failed", "course_id", courseID, "lecture_id", ref.ID, "error", err)
				continue
			}
			if !lecture.IsPublished {
				slog.Debug("skipping unpublished lecture", "course_id", courseID, "lecture_id", lecture.ID)
				continue
			}

			w.enqueueLecture(course, section, lecture, courseDir)
		}
	}

	return nil
}

func (w *Walker) enqueueLecture(course *teachable.Course, section teachable.Section, lecture *teachable.Lecture, courseDir string) {
	for _, att := range lecture.Attachments {
		kind := domain.AttachmentKind(att.Kind)
		if !w.kinds[kind] {
			continue
		}

		if err := validation.ValidateDownloadURL(att.URL); err != nil {
			slog.Warn("skipping attachment with unusable URL",
				"attachment_id", att.ID, "lecture_id", lecture.ID, "error", err)
			continue
		}

		task := &domain.DownloadTask{
			AttachmentID: att.ID,
			CourseID:     course.ID,
			LectureID:    lecture.ID,
			Name:         att.Name,
			Kind:         kind,
			URL:          att.URL,
			RelPath:      AttachmentPath(courseDir, section.Position, lecture.Position, att.Position, att.ID, att.Name),
		}

		if err := w.queue.Enqueue(task); err != nil {
			slog.Warn("queue closed before task could be added", "attachment_id", att.ID)
			return
		}
		metrics.TasksEnqueued.Inc()
		slog.Debug("task enqueued", "attachment_id", att.ID, "path", task.RelPath)
	}
}
