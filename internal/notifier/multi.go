package notifier

import (
	"errors"

	"github.com/amishk599/jobscout/internal/model"
)

// Multi fans postings out to several notifiers. Every notifier is called
// even when an earlier one fails; the errors are joined.
type Multi []model.Notifier

func (m Multi) Notify(postings []model.JobPosting) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(postings); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
