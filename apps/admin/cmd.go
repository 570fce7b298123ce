package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp             = errors.New("help provided")
	errPasswordMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	db        *sql.DB
	usrSvc    *user.Service
	creditSvc *credit.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run goose migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  adduser -name NAME -username USERNAME [-email EMAIL] [-role ROLE] [-subject ID] - create an account")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  grantcredits -student ID -batch ID -credits N [-amount AMOUNT] [-expires YYYY-MM-DD] - record a credit purchase")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "One of admin, teacher, student.")
	addUserSubject := addUserCmd.String("subject", "", "The Teacher or Student ID the account acts as.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	grantCmd := flag.NewFlagSet("grantcredits", flag.ContinueOnError)
	grantStudent := grantCmd.String("student", "", "The Student ID.")
	grantBatch := grantCmd.String("batch", "", "The Batch ID.")
	grantCredits := grantCmd.Int("credits", 0, "Number of credits purchased.")
	grantAmount := grantCmd.String("amount", "0", "Amount paid.")
	grantExpires := grantCmd.String("expires", "", "Expiry date (YYYY-MM-DD), if any.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(true)
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Role:            *addUserRole,
			SubjectID:       *addUserSubject,
			Password:        pwd,
			PasswordConfirm: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(false)
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "grantcredits":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.grantCredits(*grantStudent, *grantBatch, *grantCredits, *grantAmount, *grantExpires)

	default:
		cli.printUsage()
		return errHelp
	}
}

// promptPassword reads a password from the terminal, asking for it twice when confirm is set.
func promptPassword(confirm bool) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if !confirm || len(pwd) == 0 {
		return string(pwd), nil
	}

	fmt.Print("Confirm password:")
	pwd2, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if string(pwd) != string(pwd2) {
		return "", errPasswordMismatch
	}
	return string(pwd), nil
}
