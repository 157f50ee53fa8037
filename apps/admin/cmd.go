package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	usrRepo  user.Repository
	childSvc child.ServiceInterface
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-phone PHONE] [-role admin|staff|parent] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  addchild -name NAME -parent USERNAME|EMAIL - register a child and print its badge token")
	fmt.Println("  resetstatuses - set every child to ABSENT")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserPhone := addUserCmd.String("phone", "", "The user's phone number, in E.164 format.")
	addUserRole := addUserCmd.String("role", roleAdmin, "One of admin, staff or parent.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	addChildCmd := flag.NewFlagSet("addchild", flag.ExitOnError)
	addChildName := addChildCmd.String("name", "", "The child's full name.")
	addChildParent := addChildCmd.String("parent", "", "The parent's username or email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(newUserArgs{
			uname: *addUserUname,
			email: *addUserEmail,
			name:  *addUserName,
			phone: *addUserPhone,
			role:  *addUserRole,
			pwd:   pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
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
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "addchild":
		if err := addChildCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addChildName == "" || *addChildParent == "" {
			addChildCmd.Usage()
			return errHelp
		}
		c, err := cli.addChild(*addChildName, *addChildParent)
		if err != nil {
			return err
		}
		fmt.Printf("child %q registered: id=%s badge=%s\n", c.Name, c.ID, c.QRCode)
		return nil

	case "resetstatuses":
		n, err := cli.resetStatuses()
		if err != nil {
			return err
		}
		fmt.Printf("%d children set to %s\n", n, child.StatusAbsent)
		return nil

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
