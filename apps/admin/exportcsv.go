package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
)

const exportFilename = "projects_export.csv"

func (cli *commandLine) exportCSV(outPath, email string) error {
	ctx := context.Background()
	if email != "" {
		return cli.emailExport(ctx, email)
	}

	var w io.Writer = cli.out
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrap(err, "creating export file")
		}
		defer f.Close()
		w = f
	}

	n, err := cli.projectSvc.ExportCSV(ctx, w)
	if err != nil {
		return err
	}
	if outPath != "" {
		fmt.Fprintf(cli.out, "%d projects exported to %s\n", n, outPath)
	}
	return nil
}

// emailExport sends the export as an attachment of the project_export email.
func (cli *commandLine) emailExport(ctx context.Context, to string) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return errors.Wrapf(err, "invalid email %q", to)
	}

	var buf bytes.Buffer
	n, err := cli.projectSvc.ExportCSV(ctx, &buf)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      "Project export",
		TemplateName: "project_export",
		TemplateData: map[string]interface{}{
			"Date":  time.Now().UTC().Format("2006-01-02"),
			"Count": n,
		},
	}
	if err = msg.Attach(&buf, exportFilename, "text/csv"); err != nil {
		return errors.Wrap(err, "attaching export")
	}
	if err = cli.mailSvc.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "sending export")
	}
	fmt.Fprintf(cli.out, "%d projects exported to %s\n", n, addr.Address)
	return nil
}
