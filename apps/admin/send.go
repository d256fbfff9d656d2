package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

var errNoRecipients = errors.New("no recipients found")

// send delivers a notification of the given kind to the recipients & the active users having any of roles,
// data being the JSON payload.
func (cli *commandLine) send(kind string, recipientIDs, roles []string, data string) error {
	payload := make(map[string]interface{})
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return errors.Wrap(err, "decoding -data")
	}

	ctx := context.Background()
	ids, err := cli.usrSvc.RecipientIDs(ctx, recipientIDs, roles)
	if err != nil {
		return errors.Wrap(err, "resolving recipients")
	}
	if len(ids) == 0 {
		return errNoRecipients
	}

	if err = cli.notifSvc.SendBulk(ctx, kind, ids, payload); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s notification sent to %d recipient(s)\n", kind, len(ids))
	return nil
}
