package main

import (
	"log"
	"os"

	"github.com/agent-protocol/contoso-agents/pkg/cli"
)

func main() {
	app := cli.NewApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
