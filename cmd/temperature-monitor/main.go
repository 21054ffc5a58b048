package main

import "github.com/oshokin/temperature-monitor/cmd/temperature-monitor/cmd"

func main() {
	cmd.Execute()
}
