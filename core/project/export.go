package project

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

const exportDateLayout = "2006-01-02 15:04"

var exportHeader = []string{"Title", "Student", "Email", "Category", "Status", "Date Submitted", "Views", "Likes"}

// ExportCSV writes every project as CSV, newest first, and returns the number of rows written.
func (svc *service) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	projects, err := svc.repo.QueryProjects(ctx, QueryFilter{}, newestFirst, core.Page{})
	if err != nil {
		return 0, errors.Wrap(err, "querying projects")
	}

	cw := csv.NewWriter(w)
	if err = cw.Write(exportHeader); err != nil {
		return 0, errors.Wrap(err, "writing csv header")
	}
	for _, p := range projects {
		row := []string{
			p.Title,
			p.Owner.DisplayName(),
			p.Owner.Email,
			p.Category,
			string(p.Status),
			p.CreatedAt.Format(exportDateLayout),
			strconv.Itoa(p.Views),
			strconv.Itoa(p.Likes),
		}
		if err = cw.Write(row); err != nil {
			return 0, errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	if err = cw.Error(); err != nil {
		return 0, errors.Wrap(err, "flushing csv")
	}
	return len(projects), nil
}
