package main

import "inspectmetrics/internal/app"

func main() {
	app.Main()
}
