package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) cleanup(olderThanDays int) error {
	res, err := cli.notifSvc.CleanupAll(context.Background(), olderThanDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(
		cli.out,
		"%d notification(s) deleted for %d recipient(s), %d failure(s)\n",
		res.TotalDeleted, res.ProcessedRecipients, res.Failed,
	)
	return nil
}
