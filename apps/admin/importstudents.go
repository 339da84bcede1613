package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func (cli *commandLine) importStudents(sectionID, path string) error {
	ctx := context.Background()
	sec, err := cli.secSvc.GetByID(ctx, sectionID)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading roster")
	}

	res, err := cli.stSvc.Import(ctx, sec.SchoolID, sec.ID, filepath.Base(path), content)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d imported, %d skipped\n", sec.Name, res.Imported, res.Skipped)
	return nil
}
