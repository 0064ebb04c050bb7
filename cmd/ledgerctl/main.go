package main

import "sales-ledger/cmd/ledgerctl/commands"

func main() {
	commands.Execute()
}
