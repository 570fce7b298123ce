package main

import (
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/conservatoire/fs"
)

var gooseRunFunc = goose.RunFS // mockable

// migrationCommands are the goose commands the ledger schema supports; "create" and "fix" only touch files.
var migrationCommands = map[string]bool{
	"up": true, "up-by-one": true, "up-to": true,
	"down": true, "down-to": true, "redo": true, "reset": true,
	"status": true, "version": true, "create": true, "fix": true,
}

func (cli *commandLine) migrate(args []string) error {
	command := args[0]
	if !migrationCommands[command] {
		return errors.Errorf("%q: no such command", command)
	}
	if err := gooseRunFunc(command, cli.db, appfs.FS, "migrations", args[1:]...); err != nil {
		return errors.Wrapf(err, "running migrations %s", command)
	}
	return nil
}
