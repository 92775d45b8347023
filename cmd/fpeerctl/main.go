package main

import (
	"github.com/fleetpeer-io/fleetpeer/cmd/fpeerctl/app"
)

func main() {
	app.NewApp().Run()
}
