package main

import (
	_ "time/tzdata"

	"ledger-backend/cmd"
)

func main() {
	cmd.Execute()
}
