package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/gradebook/core/section"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	secSvc  section.Service
	stSvc   student.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createpoweruser -name NAME -email EMAIL - create a power user, or promote an existing one")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  importstudents -section SECTION_ID -file PATH - import a CSV or XLSX roster into a section")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose command against the database")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createPowerUserCmd := flag.NewFlagSet("createpoweruser", flag.ContinueOnError)
	createPowerUserName := createPowerUserCmd.String("name", "", "The user's full name.")
	createPowerUserEmail := createPowerUserCmd.String("email", "", "The user's email. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	importStudentsCmd := flag.NewFlagSet("importstudents", flag.ContinueOnError)
	importStudentsSection := importStudentsCmd.String("section", "", "The ID of the section receiving the students.")
	importStudentsFile := importStudentsCmd.String("file", "", "The path of the .csv or .xlsx roster.")

	switch args[1] {
	case "createpoweruser":
		if err := createPowerUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createPowerUserName == "" || *createPowerUserEmail == "" {
			createPowerUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			createPowerUserCmd.Usage()
			return errHelp
		}
		return cli.createPowerUser(*createPowerUserName, *createPowerUserEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "importstudents":
		if err := importStudentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importStudentsSection == "" || *importStudentsFile == "" {
			importStudentsCmd.Usage()
			return errHelp
		}
		return cli.importStudents(*importStudentsSection, *importStudentsFile)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
