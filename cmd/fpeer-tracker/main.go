package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/fleetpeer-io/fleetpeer/cmd/fpeer-tracker/app"
)

func main() {
	app.NewApp().Run()
}
