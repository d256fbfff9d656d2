package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	usrSvc   *user.Service
	notifSvc *notification.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME [-email EMAIL] [-username USERNAME] [-role ROLE] - register a recipient")
	fmt.Fprintln(cli.out, "  send -kind KIND [-to ID[,ID...]] [-role ROLE[,ROLE...]] [-data JSON] - send a notification")
	fmt.Fprintln(cli.out, "  cleanup [-days DAYS] - delete the notifications read more than DAYS ago")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The recipient's full name.")
	addUserEmail := addUserCmd.String("email", "", "The recipient's email, mails are not sent without it.")
	addUserUname := addUserCmd.String("username", "", "The recipient's username.")
	addUserRole := addUserCmd.String("role", "", "The recipient's role, eg. parent: or admin:")

	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	sendKind := sendCmd.String("kind", "", "The notification kind, eg. welcome or PaymentReceived.")
	sendTo := sendCmd.String("to", "", "Comma separated recipient IDs.")
	sendRoles := sendCmd.String("role", "", "Comma separated roles, eg. parent: or teacher:, of the active recipients.")
	sendData := sendCmd.String("data", "{}", "The notification payload as a JSON object.")

	cleanupCmd := flag.NewFlagSet("cleanup", flag.ExitOnError)
	cleanupDays := cleanupCmd.Int("days", cli.conf.Notifications.RetentionDays, "Retention period in days.")

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
		if *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserUname, *addUserRole)
	case "send":
		if err := sendCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *sendKind == "" || *sendTo == "" {
			sendCmd.Usage()
			return errHelp
		}
		return cli.send(*sendKind, strings.Split(*sendTo, ","), splitList(*sendRoles), *sendData)
	case "cleanup":
		if err := cleanupCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.cleanup(*cleanupDays)
	default:
		cli.printUsage()
		return errHelp
	}
}

// splitList splits a comma separated list, ignoring blank items.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
