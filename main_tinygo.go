//go:build tinygo && baremetal

package main

import (
	"tinyscope/app"
	"tinyscope/hal"
)

func main() {
	app.Run(hal.New(), app.DefaultConfig())
}
