package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/fleetpeer-io/fleetpeer/cmd/fpeer-simulator/app"
)

func main() {
	app.NewApp().Run()
}
