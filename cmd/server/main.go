package main

import "github.com/thanhnp/vote-ledger/cmd/server/commands"

func main() {
	commands.Execute()
}
