package notifier

import (
	"log/slog"

	"github.com/amishk599/jobscout/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes newly stored postings to the given logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each posting with organization, title, location and link.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(postings []model.JobPosting) error {
	for _, p := range postings {
		args := []any{
			"organization", p.Organization,
			"title", p.Title,
			"location", p.Location,
			"link", string(p.Link),
			"keyword", p.SearchedKeyword,
		}
		if lvl := p.Criteria[model.CriteriaSeniorityLevel]; lvl != "" {
			args = append(args, "seniority", lvl)
		}
		n.logger.Info("new posting", args...)
	}
	return nil
}
