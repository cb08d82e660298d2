package main

import (
	_ "time/tzdata"

	"github.com/pfrederiksen/venue-events/internal/cli"
)

func main() {
	cli.Execute()
}
